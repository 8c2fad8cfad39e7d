/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h3

import "github.com/badu/h3/router"

// routeEntry is the Route Entry of §3: one of {unary, stream,
// stream_with_loop} plus metadata, stored opaquely in the router trie and
// type-asserted back out at dispatch time.
type routeEntry struct {
	handler Handler
	typed   *TypedStreamHandler
}

func (r *Router) register(method, pattern string, h Handler) error {
	return r.inner.Insert(method, pattern, &routeEntry{handler: h}, nil)
}

// Get registers a GET route.
func (r *Router) Get(pattern string, h Handler) error { return r.register("GET", pattern, h) }

// Post registers a POST route.
func (r *Router) Post(pattern string, h Handler) error { return r.register("POST", pattern, h) }

// Put registers a PUT route.
func (r *Router) Put(pattern string, h Handler) error { return r.register("PUT", pattern, h) }

// Patch registers a PATCH route.
func (r *Router) Patch(pattern string, h Handler) error { return r.register("PATCH", pattern, h) }

// Delete registers a DELETE route.
func (r *Router) Delete(pattern string, h Handler) error { return r.register("DELETE", pattern, h) }

// Head registers a HEAD route.
func (r *Router) Head(pattern string, h Handler) error { return r.register("HEAD", pattern, h) }

// Options registers an OPTIONS route.
func (r *Router) Options(pattern string, h Handler) error {
	return r.register("OPTIONS", pattern, h)
}

// Any registers h for pattern under every supported method.
func (r *Router) Any(pattern string, h Handler) error {
	return r.inner.Any(pattern, &routeEntry{handler: h}, nil)
}

// Router is the handler-facing route table (§6), wrapping router.Router
// with h3's concrete Handler type so callers never touch router.Handler's
// opaque any.
type Router struct {
	inner *router.Router
}

// NewRouter builds a Router with the given resolution cache capacity (<=0
// disables caching).
func NewRouter(cacheCapacity int) *Router {
	return &Router{inner: router.New(cacheCapacity)}
}

// match resolves method+path to a routeEntry and bound parameters.
func (r *Router) match(method, path string) (*routeEntry, []router.Param, error) {
	m, err := r.inner.Match(method, path)
	if err != nil {
		return nil, nil, err
	}
	entry, _ := m.Handler.(*routeEntry)
	return entry, m.Params, nil
}

func (r *Router) allowedMethods(path string) []string {
	return r.inner.AllowedMethods(path)
}
