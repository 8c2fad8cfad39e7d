/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h3

import (
	"encoding/json"
	"fmt"

	"github.com/badu/h3/errs"
	"github.com/badu/h3/hdr"
	"github.com/badu/h3/pool"
	"github.com/badu/h3/router"
	"github.com/badu/h3/sse"
)

// StreamMode tags which of the two typed streaming handler shapes a
// handler registered, replacing the source's comptime-arity dispatch with
// an explicit tagged variant per §9's "Comptime handler dispatch" note.
type StreamMode int

const (
	StreamModeUnary StreamMode = iota
	StreamModeUnaryWithLoop
)

// TypedStreamHandler is the registration-time choice between a plain
// writer callback and one that also receives the connection's loop, for
// handlers that need to schedule their own timers (e.g. periodic SSE
// events).
type TypedStreamHandler struct {
	Mode          StreamMode
	Unary         func(*sse.Writer)
	UnaryWithLoop func(*sse.Writer, *Loop)
}

// Handler is the user-facing route handler signature. It runs
// synchronously with respect to the current request (§4.3); returning an
// error replaces the response with an error response (500, or the status
// an *errs.Error's Kind maps to) unless the response headers were already
// sent.
type Handler func(*Event) error

// Middleware wraps a Next continuation; see middleware.go for Chain.
type Middleware func(e *Event, next func(*Event) error) error

// Event is the per-request context (§3): it owns the parsed Request and
// the Response-under-construction, bound route parameters, an arena for
// response header strings, and the streaming registration hooks. Events
// are acquired from a pool.Pool[Event] and reset on release; see
// resetEvent.
type Event struct {
	Request  Request
	Response Response
	Params   []router.Param

	arena *pool.Arena

	streamCallback func(*sse.Writer)
	typedHandler   *TypedStreamHandler
	sseStarted     bool

	committed bool
}

// resetEvent brings an Event back to its freshly-constructed state (§4.6
// reset contract): clears parameters, headers, body references, flags, and
// callbacks. It does not free the arena's buffers directly — those are
// released in one bulk operation by the arena's own Reset/Release, called
// by the server around the same release point.
func resetEvent(e *Event) {
	resetRequest(&e.Request)
	resetResponse(&e.Response)
	e.Params = e.Params[:0]
	e.streamCallback = nil
	e.typedHandler = nil
	e.sseStarted = false
	e.committed = false
}

// Param returns the bound path parameter named name, or "" if absent.
// Values are borrowed from the routed path until the Event is released.
func (e *Event) Param(name string) string {
	for _, p := range e.Params {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

func (e *Event) Method() string { return e.Request.Method }
func (e *Event) Path() string   { return e.Request.Path }
func (e *Event) Query(name string) string {
	return e.Request.QueryValue(name)
}
func (e *Event) Header(name string) string { return e.Request.HeaderValue(name) }
func (e *Event) Body() []byte              { return e.Request.Body }

// ReadJSON decodes the request body into v.
func (e *Event) ReadJSON(v any) error {
	if len(e.Request.Body) == 0 {
		return errs.New(errs.KindParse, "empty body")
	}
	if err := json.Unmarshal(e.Request.Body, v); err != nil {
		return errs.Wrap(errs.KindParse, err)
	}
	return nil
}

// SetStatus sets the response status code. No-op once headers are sent.
func (e *Event) SetStatus(code int) *Event {
	if !e.Response.HeadersSent {
		e.Response.Status = code
	}
	return e
}

// SetHeader sets a response header, interning both name and value through
// the Event's arena so they survive past the caller's own buffers without
// a per-call allocation outside the arena's bulk block.
func (e *Event) SetHeader(name, value string) *Event {
	if e.Response.HeadersSent {
		return e
	}
	if e.arena != nil {
		name = e.arena.Intern(hdr.CanonicalHeaderKey(name))
		value = e.arena.Intern(value)
	}
	e.Response.Header.Set(name, value)
	return e
}

// commit marks the response committed; only one response may be committed
// per Event (§3).
func (e *Event) commit() error {
	if e.committed {
		return errs.New(errs.KindHandler, "response already committed")
	}
	e.committed = true
	return nil
}

// SendText sends a text/plain response body.
func (e *Event) SendText(s string) error {
	if err := e.commit(); err != nil {
		return err
	}
	if e.Response.Status == 0 {
		e.Response.Status = 200
	}
	e.Response.Header.Set(hdr.ContentType, "text/plain; charset=utf-8")
	e.Response.Body = []byte(s)
	return nil
}

// SendHTML sends a text/html response body.
func (e *Event) SendHTML(s string) error {
	if err := e.commit(); err != nil {
		return err
	}
	if e.Response.Status == 0 {
		e.Response.Status = 200
	}
	e.Response.Header.Set(hdr.ContentType, "text/html; charset=utf-8")
	e.Response.Body = []byte(s)
	return nil
}

// SendJSON marshals v and sends it as application/json.
func (e *Event) SendJSON(v any) error {
	if err := e.commit(); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(errs.KindHandler, err)
	}
	if e.Response.Status == 0 {
		e.Response.Status = 200
	}
	e.Response.Header.Set(hdr.ContentType, "application/json; charset=utf-8")
	e.Response.Body = b
	return nil
}

// Redirect sends a redirect response. code must be one of the standard
// 3xx redirect codes; anything else is rejected rather than silently
// coerced, since a caller passing e.g. 200 almost certainly meant to call
// SetStatus instead.
func (e *Event) Redirect(url string, code int) error {
	switch code {
	case 301, 302, 303, 307, 308:
	default:
		return errs.New(errs.KindHandler, fmt.Sprintf("invalid redirect status %d", code))
	}
	if err := e.commit(); err != nil {
		return err
	}
	e.Response.Status = code
	e.Response.Header.Set(hdr.Location, url)
	e.Response.Body = nil
	return nil
}

// StartSSE opts the Event into Server-Sent Events (§4.5): it sets
// sse_started and prepares the fixed header set. It does not create the
// Writer — the adapter does that after observing sse_started and flushing
// headers (conn.go's promoteStream).
func (e *Event) StartSSE() error {
	if err := e.commit(); err != nil {
		return err
	}
	e.sseStarted = true
	e.Response.Status = 200
	fixed := sse.FixedHeaders()
	for _, k := range fixed.Keys() {
		e.Response.Header.Set(k, fixed.Get(k))
	}
	return nil
}

// SetStreamCallback registers the legacy callback form: a plain function
// of the Writer.
func (e *Event) SetStreamCallback(fn func(*sse.Writer)) {
	e.streamCallback = fn
}

// SetTypedStreamHandler registers the tagged-variant form (§9).
func (e *Event) SetTypedStreamHandler(h TypedStreamHandler) {
	e.typedHandler = &h
}
