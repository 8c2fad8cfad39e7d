/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h3

import "github.com/badu/h3/bridge"

// Loop aliases the async runtime bridge's task queue so handler code that
// registers a stream_with_loop callback (§6) never needs to import
// bridge directly.
type Loop = bridge.Loop

// Chain composes an ordered middleware list with a terminal Handler into a
// single Handler, so the Connection state machine only ever has one thing
// to call per request. Execution is synchronous (§4.3): each middleware's
// next runs to completion before control returns to it.
type Chain struct {
	middlewares []Middleware
}

// Use appends mw to the chain, in registration order.
func (c *Chain) Use(mw Middleware) {
	c.middlewares = append(c.middlewares, mw)
}

// Then composes the chain around terminal, returning a Handler a
// Connection can call directly.
func (c *Chain) Then(terminal Handler) Handler {
	h := terminal
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		mw := c.middlewares[i]
		next := h
		h = func(e *Event) error {
			return mw(e, next)
		}
	}
	return h
}
