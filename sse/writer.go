// Package sse implements §4.5's Streaming (SSE) Engine: promoting a
// connection into a long-lived event stream, a bounded backpressure-aware
// write queue, and the text/event-stream wire format.
//
// Grounded on the teacher's response-writing path for the "flush headers,
// then hand off to the caller" shape, generalized here into an explicit
// Stream/Writer split because the teacher has no concept of a half-open,
// server-push response at all. The write-queue/backpressure design and the
// deferred-close-until-drained rule are new code built directly from
// §4.5's contract.
package sse

import (
	"github.com/badu/h3/bridge"
	"github.com/badu/h3/errs"
	"github.com/badu/h3/hdr"
	"go.uber.org/zap"
)

// FixedHeaders are written verbatim when a handler starts SSE (§4.5).
// Connection is deliberately absent: §4.4's Streaming-state invariant
// requires that Connection: keep-alive must NOT be set once streaming,
// which conflicts with §4.5's literal header list; omitting it entirely
// resolves the conflict without changing wire behavior, since an HTTP/1.1
// response with no Connection header already defaults to persistent.
func FixedHeaders() *hdr.Map {
	m := hdr.New()
	m.Set(hdr.ContentType, "text/event-stream")
	m.Set(hdr.CacheControl, "no-cache")
	return m
}

// Writer is the handler-facing SSE writer (§4.5). It is allocated by
// Promote after the adapter observes sse_started and flushes the fixed
// response headers.
type Writer struct {
	s              *stream
	defaultRetryMs int
}

// Promote turns an already-header-flushed connection into a Stream Sub-
// object and returns the Writer bound to it. The response headers must
// already have been written to rt's connection by the caller (the adapter flushes response
// headers itself, per §4.5 step 1, before Promote allocates the writer).
// onClose, if non-nil, runs once the stream has actually finished closing
// (writer closed and queue drained, or a write failed) — the owning
// connection's cue to stop its loop and close its socket, rather than
// doing so the moment the handler that started the stream returns (§4.4:
// Streaming persists until the writer closes).
func Promote(rt bridge.Runtime, logger *zap.Logger, maxQueueBytes, defaultRetryMs int, onClose func()) *Writer {
	return &Writer{s: newStream(rt, logger, maxQueueBytes, onClose), defaultRetryMs: defaultRetryMs}
}

// SendEvent enqueues event for writing. Returns ErrBufferFull if the
// queue's byte cap would be exceeded, or ErrConnectionClosed if the
// stream already closed. A retry: line is emitted only when event.RetryMs
// is set explicitly — sse_default_retry_ms (see DefaultRetryMs) is advice
// a handler can consult, not something this engine injects unasked, since
// most events in a stream should not re-announce the reconnect delay.
func (w *Writer) SendEvent(event Event) error {
	return w.s.enqueue(formatEvent(event))
}

// DefaultRetryMs returns the server's configured sse_default_retry_ms,
// for handlers that want to set it explicitly on their first event.
func (w *Writer) DefaultRetryMs() int {
	return w.defaultRetryMs
}

// SendComment enqueues an SSE comment line, typically used for keep-alive
// pings that don't carry an event payload.
func (w *Writer) SendComment(comment string) error {
	return w.s.enqueue(formatComment(comment))
}

// Flush is a no-op marker for callers migrating from buffered-writer APIs:
// the stream's pump already writes each queued chunk as soon as the prior
// one completes, so there is nothing additional to flush.
func (w *Writer) Flush() error {
	if w.s.isClosed() {
		return errs.ErrConnectionClosed
	}
	return nil
}

// Close requests the stream close. If writes are still queued or in
// flight, the physical close is deferred until the queue drains (§4.5).
func (w *Writer) Close() error {
	w.s.requestClose()
	return nil
}

// Closed reports whether the underlying stream has completed its close.
func (w *Writer) Closed() bool {
	return w.s.isClosed()
}
