// Package logging supplies the structured logger threaded through the
// server, connection state machine, and SSE engine. It replaces the
// teacher's channel-based ServerEventHandler/srvEvDispatcher pub-sub
// (server_event_emitter.go) with the idiomatic Go approach of an injected
// *zap.Logger: callers log through that logger instead of subscribing to a
// fan-out channel per event type.
package logging

import "go.uber.org/zap"

// Nop returns a logger that discards everything, the default when an
// embedder doesn't configure one.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// NewDevelopment returns a human-readable, colorized console logger, handy
// for cmd/h3demo and local debugging.
func NewDevelopment() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return Nop()
	}
	return l
}

// NewProduction returns a JSON logger suitable for production log pipelines.
func NewProduction() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return Nop()
	}
	return l
}

// Named event constants, one per log point listed in SPEC_FULL.md §A.1. The
// server, connection and SSE code do not reference them; they log with
// plain messages instead.
const (
	EventConnAccept    = "conn.accept"
	EventConnClose     = "conn.close"
	EventRequestStart  = "request.start"
	EventRequestDone   = "request.complete"
	EventRequestError  = "request.error"
	EventSSEStart      = "sse.start"
	EventSSESent       = "sse.event_sent"
	EventSSEBufferFull = "sse.buffer_full"
	EventSSEClosed     = "sse.closed"
	EventCacheEvict    = "router.cache_evict"
)
