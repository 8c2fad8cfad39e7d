/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h3

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/badu/h3/bridge"
	"github.com/badu/h3/errs"
	"github.com/badu/h3/hdr"
	"github.com/badu/h3/sse"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// connState is the Connection State Machine of §4.4.
type connState int

const (
	stateReading connState = iota
	stateDispatching
	stateWriting
	stateStreaming
	stateClosing
	stateClosed
)

// conn is one accepted TCP connection (§3's Connection entity). It owns
// its buffers and, once promoted, its Stream Sub-object; at most one
// outstanding read and one outstanding write are in flight at a time,
// which falls out naturally here since a single goroutine drives the
// whole per-connection loop.
type conn struct {
	id   string
	srv  *Server
	nc   net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
	loop *bridge.Loop
	rt   *bridge.GoroutineRuntime

	mu         sync.Mutex
	state      connState
	lastActive time.Time
	requests   int
	writer     *sse.Writer
	closeOnce  sync.Once
	closedCh   chan struct{}
}

// newConn wraps an accepted socket. Each connection gets its own uuid so
// log lines across a connection's lifetime (and the SSE events it later
// streams) can be correlated without reaching for the remote address,
// which is not stable across NATs/proxies.
func newConn(srv *Server, nc net.Conn) *conn {
	loop := bridge.NewLoop(32)
	c := &conn{
		id:         uuid.NewString(),
		srv:        srv,
		nc:         nc,
		br:         bufio.NewReaderSize(nc, 4096),
		bw:         bufio.NewWriterSize(nc, 4096),
		loop:       loop,
		state:      stateReading,
		lastActive: srv.now(),
		closedCh:   make(chan struct{}),
	}
	c.rt = bridge.NewGoroutineRuntime(nc, loop)
	return c
}

func (c *conn) setState(s connState) {
	c.mu.Lock()
	c.state = s
	c.lastActive = c.srv.now()
	c.mu.Unlock()
}

func (c *conn) touch() {
	c.mu.Lock()
	c.lastActive = c.srv.now()
	c.mu.Unlock()
}

func (c *conn) idleSince() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.srv.now().Sub(c.lastActive)
}

// serve drives the connection's Reading -> Dispatching -> (Writing |
// Streaming) -> ... loop until it closes. Grounded on the teacher's own
// per-connection goroutine shape (conn.serve in the original package),
// generalized to h3's Event/Router/Middleware pipeline.
func (c *conn) serve(ctx context.Context) {
	// streaming is flipped once promoteStream hands the connection off to
	// an SSE Stream Sub-object. From that point its teardown is driven by
	// stream.finishClose (via the onClose hook given to sse.Promote), not
	// by this function returning — §4.4 requires the connection to stay
	// alive through Dispatching -> Streaming until the writer itself
	// closes, which can be long after this goroutine's loop has nothing
	// left to do.
	streaming := false
	defer func() {
		if !streaming {
			c.close()
		}
	}()
	if c.srv.logger != nil {
		c.srv.logger.Info("connection accepted", zap.String("conn_id", c.id), zap.String("remote", c.nc.RemoteAddr().String()))
	}

	for {
		c.setState(stateReading)

		if rt := c.srv.config.Server.ReadTimeout.Dur(); rt > 0 {
			_ = c.nc.SetReadDeadline(c.srv.now().Add(rt))
		}

		ev, err := c.srv.events.Acquire()
		if err != nil {
			c.writeErrorResponse(503, err)
			return
		}
		ev.arena = c.srv.newArena()

		perr := parseRequest(c.br, &ev.Request, c.srv.config.Server.MaxHeaderBytes, int(c.srv.config.Server.MaxRequestBytes))
		if perr != nil {
			c.srv.releaseEvent(ev)
			if isTransportClosed(perr) {
				return
			}
			c.writeErrorResponse(400, perr)
			return
		}
		c.touch()

		c.setState(stateDispatching)
		c.dispatch(ctx, ev)

		if ev.sseStarted {
			c.setState(stateStreaming)
			// Control now belongs to the user's stream callback; this
			// goroutine's request/response loop ends here (§4.4:
			// Dispatching -> Streaming is terminal for normal responses).
			// The connection itself is NOT torn down on this return — see
			// the streaming flag above — unless promotion itself failed
			// before a Stream Sub-object (and its teardown hook) ever
			// existed, in which case there is nothing left to drive close
			// from and this goroutine must do it directly.
			if c.promoteStream(ev) {
				streaming = true
			}
			return
		}

		c.setState(stateWriting)
		closeAfter, werr := writeResponse(c.bw, &ev.Response)
		keepAlive := ev.Request.keepAlive
		c.srv.releaseEvent(ev)
		if werr != nil {
			if c.srv.logger != nil {
				c.srv.logger.Error("response write failed", zap.String("conn_id", c.id), zap.Error(werr))
			}
			return
		}
		if closeAfter || !keepAlive || c.requestLimitReached() {
			return
		}
		c.requests++
	}
}

func (c *conn) requestLimitReached() bool {
	const maxRequestsPerConn = 10000
	return c.requests >= maxRequestsPerConn
}

// dispatch runs the middleware chain and matched handler for ev,
// converting a RoutingError or a handler error into a response rather
// than letting it escape (§4.3, §7).
func (c *conn) dispatch(ctx context.Context, ev *Event) {
	entry, params, err := c.srv.router.match(ev.Request.Method, ev.Request.Path)
	if err != nil {
		c.respondError(ev, err)
		return
	}
	ev.Params = append(ev.Params[:0], params...)

	handler := c.srv.chain.Then(entry.handler)
	ev.typedHandler = entry.typed

	if herr := handler(ev); herr != nil {
		c.respondError(ev, herr)
		return
	}
	if ev.Response.Status == 0 && !ev.sseStarted {
		ev.Response.Status = 200
	}
	ev.Response.Version = ev.Request.Version
	if !ev.Request.keepAlive {
		ev.Response.Header.Set(hdr.Connection, "close")
	}
}

// respondError converts a structured error into an HTTP response per
// §7's propagation policy. If headers were already sent it leaves the
// response untouched and returns; it does not close the connection itself.
func (c *conn) respondError(ev *Event, err error) {
	if ev.Response.HeadersSent {
		return
	}
	var e *errs.Error
	status := 500
	if errors.As(err, &e) {
		status = e.HTTPStatus()
	}
	ev.Response.Status = status
	ev.Response.Version = ev.Request.Version
	ev.Response.Header.Reset()
	ev.Response.Header.Set(hdr.ContentType, "text/plain; charset=utf-8")
	if status == 405 {
		methods := c.srv.router.allowedMethods(ev.Request.Path)
		ev.Response.Header.Set(hdr.Allow, joinComma(methods))
	}
	if !ev.Request.keepAlive {
		ev.Response.Header.Set(hdr.Connection, "close")
	}
	ev.Response.Body = []byte(StatusText(status))
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// promoteStream implements §4.5 steps 1-3: flush the already-prepared SSE
// headers, promote the connection into a Stream Sub-object, allocate the
// Writer, and schedule the user's callback via the loop's zero-delay
// primitive so it runs outside this call stack. c.close is handed to
// sse.Promote as the stream's teardown hook: the connection's loop and
// socket are torn down when the stream itself finishes closing, not when
// this function (or serve's loop) returns. Reports whether a Stream
// Sub-object was actually created — if the header flush itself fails,
// there is no stream to drive a later close from, so the caller must
// close the connection directly.
func (c *conn) promoteStream(ev *Event) bool {
	ev.Response.HeadersSent = true
	if _, err := writeResponse(c.bw, &ev.Response); err != nil {
		if c.srv.logger != nil {
			c.srv.logger.Error("sse header flush failed", zap.String("conn_id", c.id), zap.Error(err))
		}
		c.srv.releaseEvent(ev)
		return false
	}

	writer := sse.Promote(c.rt, c.srv.logger, c.srv.config.Streaming.SSEMaxQueueBytes, c.srv.config.Streaming.SSEDefaultRetryMs, c.close)
	c.mu.Lock()
	c.writer = writer
	c.mu.Unlock()

	callback := ev.streamCallback
	typed := ev.typedHandler
	c.srv.releaseEvent(ev)

	c.rt.ScheduleZeroDelay(func() {
		switch {
		case typed != nil && typed.Mode == StreamModeUnaryWithLoop && typed.UnaryWithLoop != nil:
			typed.UnaryWithLoop(writer, c.loop)
		case typed != nil && typed.Unary != nil:
			typed.Unary(writer)
		case callback != nil:
			callback(writer)
		}
	})
	return true
}

// writeErrorResponse writes a minimal error response for failures that
// happen before an Event could be fully dispatched (e.g. a parse error).
func (c *conn) writeErrorResponse(status int, cause error) {
	h := hdr.New()
	h.Set(hdr.ContentType, "text/plain; charset=utf-8")
	h.Set(hdr.Connection, "close")
	resp := &Response{Status: status, Version: "HTTP/1.1", Header: h, Body: []byte(StatusText(status))}
	_, _ = writeResponse(c.bw, resp)
	if c.srv.logger != nil && cause != nil {
		c.srv.logger.Warn("request rejected", zap.String("conn_id", c.id), zap.Error(cause), zap.Int("status", status))
	}
}

// isTransportClosed reports whether err represents the peer simply going
// away (clean EOF, or a closed-connection race) rather than a malformed
// request worth a 400 response.
func isTransportClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}

// close tears the connection down exactly once, stopping its loop and
// closing the socket (§4.4: Closing -> Closed). closedCh is closed here
// so anything waiting on the connection's true end-of-life (the accept
// loop's admission bookkeeping, in particular) can block on it instead of
// on serve(ctx) returning — for a promoted connection those are not the
// same moment.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.setState(stateClosing)
		c.loop.Stop()
		_ = c.nc.Close()
		c.setState(stateClosed)
		if c.srv.logger != nil {
			c.srv.logger.Info("connection closed", zap.String("conn_id", c.id))
		}
		close(c.closedCh)
	})
}
