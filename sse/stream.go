package sse

import (
	"context"
	"sync"

	"github.com/badu/h3/bridge"
	"github.com/badu/h3/errs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxQueueBytes is §4.5's MAX_QUEUE backpressure cap.
const DefaultMaxQueueBytes = 64 * 1024

// stream is the Stream Sub-object the Connection is promoted into (§4.5
// step 1). It owns the bounded write queue and enforces the at-most-one-
// outstanding-physical-write invariant; Writer is the handler-facing view
// over it.
type stream struct {
	id          string
	mu          sync.Mutex
	rt          bridge.Runtime
	logger      *zap.Logger
	maxQueue    int
	queued      [][]byte
	queuedBytes int
	writing     bool
	closed      bool
	closePend   bool
	err         error
	onClose     func()
}

// newStream allocates a Stream Sub-object with its own uuid so its log
// lines can be correlated across the lifetime of one SSE session, since a
// connection may be promoted at most once but a server may have many
// concurrent streams sharing the same logger. onClose, if non-nil, is the
// owning connection's teardown hook: it runs once the stream has actually
// finished closing (§4.4's Streaming -> Closing transition), not when the
// handler that started the stream returns.
func newStream(rt bridge.Runtime, logger *zap.Logger, maxQueueBytes int, onClose func()) *stream {
	if maxQueueBytes <= 0 {
		maxQueueBytes = DefaultMaxQueueBytes
	}
	return &stream{id: uuid.NewString(), rt: rt, logger: logger, maxQueue: maxQueueBytes, onClose: onClose}
}

// enqueue appends chunk to the write queue, rejecting it with
// ErrBufferFull if it would push queuedBytes past maxQueue while a write
// is already in flight. A chunk handed to an idle stream always goes
// straight to the wire instead of sitting in the queue, so it never
// competes against the cap no matter how large it is (§8's backpressure
// scenario: a lone 80-byte event clears an empty 64-byte queue because it
// is the single in-flight write, never a queued one).
func (s *stream) enqueue(chunk []byte) error {
	s.mu.Lock()
	if s.closed || s.closePend {
		s.mu.Unlock()
		return errs.ErrConnectionClosed
	}
	if s.writing && s.queuedBytes+len(chunk) > s.maxQueue {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Warn("sse buffer full", zap.String("stream_id", s.id), zap.Int("queued_bytes", s.queuedBytes), zap.Int("chunk_bytes", len(chunk)))
		}
		return errs.ErrBufferFull
	}
	s.queued = append(s.queued, chunk)
	s.queuedBytes += len(chunk)
	start := !s.writing
	if start {
		s.writing = true
	}
	s.mu.Unlock()

	// enqueue must return as soon as the chunk is queued, not after it's
	// written: a completion-based event loop never blocks the caller on
	// physical I/O (§9), and a caller sending two events back-to-back has
	// to be able to observe the second one queuing behind the first's
	// still-outstanding write rather than serializing after it.
	if start {
		go s.pump()
	}
	return nil
}

// pump drains the queue one chunk at a time, honoring the single-
// outstanding-write invariant: the next write is only scheduled after the
// previous one completes. Runs on its own goroutine, decoupled from
// whichever caller's enqueue happened to start it.
func (s *stream) pump() {
	for {
		s.mu.Lock()
		if len(s.queued) == 0 {
			s.writing = false
			closePend := s.closePend
			s.mu.Unlock()
			if closePend {
				s.finishClose()
			}
			return
		}
		chunk := s.queued[0]
		s.queued = s.queued[1:]
		s.queuedBytes -= len(chunk)
		s.mu.Unlock()

		_, err := s.rt.Write(context.Background(), chunk)
		if err != nil {
			s.fail(err)
			return
		}
	}
}

// fail marks the stream closed after a write error, dropping any
// remaining queued chunks (§4.5 failure semantics), and runs the owning
// connection's teardown hook the same way a clean close would.
func (s *stream) fail(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	s.queued = nil
	s.queuedBytes = 0
	s.writing = false
	s.mu.Unlock()

	_ = s.rt.Close()
	if s.logger != nil {
		s.logger.Error("sse stream write failed", zap.String("stream_id", s.id), zap.Error(err))
	}
	s.runOnClose()
}

// requestClose marks the stream closed; if a write is in flight or the
// queue is non-empty, physical close is deferred until it drains.
func (s *stream) requestClose() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.writing || len(s.queued) > 0 {
		s.closePend = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.finishClose()
}

// finishClose performs the actual close completion: the stream's own
// book-keeping under its lock, then the runtime close and the owning
// connection's teardown hook outside of it. It must never hold s.mu while
// calling out to rt.Close/onClose — onClose may tear down the loop this
// very call is running on (the handler's stream callback runs there), and
// holding the lock across that call risks a second goroutine blocking on
// s.mu while the loop itself waits to drain, which is the deadlock this
// split avoids.
func (s *stream) finishClose() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.rt.Close()
	if s.logger != nil {
		s.logger.Info("sse stream closed", zap.String("stream_id", s.id))
	}
	s.runOnClose()
}

// runOnClose invokes the connection teardown hook on its own goroutine.
// finishClose/fail may run on the loop goroutine itself (a handler calling
// w.Close() synchronously with nothing queued): onClose stops that very
// loop, and a loop cannot join itself, so the call is handed off instead
// of made inline.
func (s *stream) runOnClose() {
	if s.onClose != nil {
		go s.onClose()
	}
}

func (s *stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
