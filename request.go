/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h3

import (
	"github.com/badu/h3/hdr"
	hurl "github.com/badu/h3/url"
)

// Request is the parsed request entity (§3). The codec copies Method, Path,
// Query, Version and header strings out of the connection's read buffer,
// and Body is its own allocation; none of them alias the read buffer or
// the Event's arena.
type Request struct {
	Method  string
	Path    string
	RawPath string
	Query   string
	Version string
	Header  *hdr.Map
	Body    []byte

	keepAlive bool
}

// QueryValue returns the first value of query parameter name, or "" if
// absent. Parsing is lazy-ish at the call site: callers on the hot path
// that never read query parameters pay nothing.
func (r *Request) QueryValue(name string) string {
	values, err := hurl.ParseQuery(r.Query)
	if err != nil {
		return ""
	}
	return values.Get(name)
}

// HeaderValue is a case-insensitive header lookup convenience.
func (r *Request) HeaderValue(name string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}

func resetRequest(r *Request) {
	r.Method = ""
	r.Path = ""
	r.RawPath = ""
	r.Query = ""
	r.Version = ""
	r.Body = nil
	r.keepAlive = false
	if r.Header != nil {
		r.Header.Reset()
	} else {
		r.Header = hdr.New()
	}
}
