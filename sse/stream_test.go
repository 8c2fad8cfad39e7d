package sse

import (
	"testing"
	"time"

	"github.com/badu/h3/errs"
	"github.com/badu/h3/internal/testh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterSendEventWritesWireFormat(t *testing.T) {
	rt := testh.NewFakeRuntime()
	w := Promote(rt, nil, DefaultMaxQueueBytes, 0, nil)

	require.NoError(t, w.SendEvent(Event{Data: "hello", Name: "greeting"}))
	assert.Eventually(t, func() bool {
		return string(rt.AllWritten()) == "event: greeting\ndata: hello\n\n"
	}, time.Second, time.Millisecond)
}

func TestWriterDefaultRetryIsAdvisoryNotAutoInjected(t *testing.T) {
	rt := testh.NewFakeRuntime()
	w := Promote(rt, nil, DefaultMaxQueueBytes, 2500, nil)

	assert.Equal(t, 2500, w.DefaultRetryMs())

	require.NoError(t, w.SendEvent(Event{Data: "x"}))
	require.NoError(t, w.SendEvent(Event{Data: "y", RetryMs: w.DefaultRetryMs()}))

	want := "data: x\n\nretry: 2500\ndata: y\n\n"
	assert.Eventually(t, func() bool {
		return string(rt.AllWritten()) == want
	}, time.Second, time.Millisecond)
}

func TestStreamEnqueueRejectsOversizedBacklog(t *testing.T) {
	rt := testh.NewFakeRuntime()
	rt.FailAfter = 0
	s := newStream(rt, nil, 8, nil)
	s.mu.Lock()
	s.writing = true // simulate a write already in flight so enqueue only queues
	s.mu.Unlock()

	require.NoError(t, s.enqueue([]byte("12345678")))
	err := s.enqueue([]byte("9"))
	assert.ErrorIs(t, err, errs.ErrBufferFull)
}

func TestWriterCloseDeferredUntilQueueDrains(t *testing.T) {
	rt := testh.NewFakeRuntime()
	w := Promote(rt, nil, DefaultMaxQueueBytes, 0, nil)

	require.NoError(t, w.SendEvent(Event{Data: "a"}))
	require.NoError(t, w.Close())

	assert.Eventually(t, func() bool {
		return w.Closed() && rt.Closed
	}, time.Second, time.Millisecond)
}

func TestWriterSendAfterCloseReturnsConnectionClosed(t *testing.T) {
	rt := testh.NewFakeRuntime()
	w := Promote(rt, nil, DefaultMaxQueueBytes, 0, nil)
	require.NoError(t, w.Close())

	err := w.SendEvent(Event{Data: "late"})
	assert.ErrorIs(t, err, errs.ErrConnectionClosed)
}

func TestStreamWriteFailureClosesAndDropsQueue(t *testing.T) {
	rt := testh.NewFakeRuntime()
	rt.FailAfter = 1
	w := Promote(rt, nil, DefaultMaxQueueBytes, 0, nil)

	// enqueue only rejects on backlog/closed-state errors; a physical
	// write failure surfaces asynchronously via the stream closing, not
	// through SendEvent's own return value.
	require.NoError(t, w.SendEvent(Event{Data: "boom"}))

	assert.Eventually(t, func() bool {
		return w.Closed() && rt.Closed
	}, time.Second, time.Millisecond)
}

func TestFixedHeadersOmitConnection(t *testing.T) {
	h := FixedHeaders()
	assert.Equal(t, "text/event-stream", h.Get("Content-Type"))
	assert.Equal(t, "no-cache", h.Get("Cache-Control"))
	assert.False(t, h.Has("Connection"), "Connection must be omitted once streaming, per the §4.4/§4.5 resolution")
}

func TestNoDeadlock(t *testing.T) {
	done := make(chan struct{})
	go func() {
		rt := testh.NewFakeRuntime()
		w := Promote(rt, nil, DefaultMaxQueueBytes, 0, nil)
		for i := 0; i < 100; i++ {
			_ = w.SendEvent(Event{Data: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sending events deadlocked")
	}
}
