// Package bridge is the Async Runtime Bridge named in SPEC_FULL.md: the
// seam between h3's connection state machine and the concrete async I/O
// primitive it runs on. The spec's source model is a completion-based event
// loop (one reactor thread, zero-delay timers to hand work back to loop
// context). Go's natural equivalent is goroutine-per-connection blocking
// I/O scheduled by the runtime's M:N scheduler — which is also exactly the
// model the teacher's own conn.go used. Runtime is kept as an interface
// instead of hard-wiring net.Conn directly through h3 so the connection
// state machine and the SSE engine can be tested against a fake without a
// real socket.
package bridge

import (
	"context"
	"net"
	"time"
)

// Runtime is the minimal async I/O surface a Connection and a Stream need.
// GoroutineRuntime is the only production implementation; tests may supply
// their own backed by net.Pipe.
type Runtime interface {
	// Read blocks until data is available, ctx's deadline (if it has one)
	// passes, or the connection closes. GoroutineRuntime only applies the
	// deadline; cancelling a ctx that has no deadline does not interrupt it.
	Read(ctx context.Context, buf []byte) (int, error)
	// Write blocks until b is fully written or an error occurs. The caller
	// (Connection/Stream) is responsible for the at-most-one-outstanding-
	// write invariant — Runtime does not serialize calls itself.
	Write(ctx context.Context, b []byte) (int, error)
	Close() error
	// ScheduleZeroDelay hands fn to the bridge's task queue to run outside
	// the caller's current call stack — the Go stand-in for the spec's
	// "zero-delay timer" handoff (§4.5 step 3: the user stream callback
	// must run in the loop's context, not inline with request processing).
	ScheduleZeroDelay(fn func())
	// ScheduleAfter hands fn to the bridge's task queue once d has
	// elapsed — the delayed-timer counterpart to ScheduleZeroDelay, for
	// handlers that pace work over time instead of just deferring it
	// (§7's periodic scheduling, §8 scenario 5's 1000ms-spaced events).
	ScheduleAfter(d time.Duration, fn func())
}

// GoroutineRuntime adapts a net.Conn plus a Loop to the Runtime interface.
type GoroutineRuntime struct {
	conn net.Conn
	loop *Loop
}

// NewGoroutineRuntime binds conn to loop's task queue.
func NewGoroutineRuntime(conn net.Conn, loop *Loop) *GoroutineRuntime {
	return &GoroutineRuntime{conn: conn, loop: loop}
}

func (r *GoroutineRuntime) Read(ctx context.Context, buf []byte) (int, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = r.conn.SetReadDeadline(dl)
	} else {
		_ = r.conn.SetReadDeadline(time.Time{})
	}
	return r.conn.Read(buf)
}

func (r *GoroutineRuntime) Write(ctx context.Context, b []byte) (int, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = r.conn.SetWriteDeadline(dl)
	} else {
		_ = r.conn.SetWriteDeadline(time.Time{})
	}
	return r.conn.Write(b)
}

func (r *GoroutineRuntime) Close() error {
	return r.conn.Close()
}

func (r *GoroutineRuntime) ScheduleZeroDelay(fn func()) {
	r.loop.Submit(fn)
}

func (r *GoroutineRuntime) ScheduleAfter(d time.Duration, fn func()) {
	r.loop.ScheduleAfter(d, fn)
}
