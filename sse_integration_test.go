package h3

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/badu/h3/config"
	"github.com/badu/h3/errs"
	"github.com/badu/h3/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readSSEEvent reads one event off br: it checks the "event: ...\nid: ...\n"
// pair, per the event->id->retry->data wire ordering fixed in sse/event.go,
// then consumes the remaining lines through the terminating blank line.
func readSSEEvent(t *testing.T, br *bufio.Reader, wantName, wantID string) {
	t.Helper()
	eventLine, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: "+wantName+"\n", eventLine)

	idLine, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "id: "+wantID+"\n", idLine)

	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			return
		}
	}
}

// TestEndToEndSSEStartAndSendEvent drives §4.4/§4.5's core contract: once a
// connection is promoted to Streaming, it stays alive for as long as the
// writer keeps it open — not just until serve()'s goroutine happens to
// return. The proceed gate below forces a real gap between serve()
// returning (right after scheduling the stream callback) and the stream
// sending its second event; if the connection were torn down on serve()
// returning (rather than from stream.finishClose once the writer actually
// closes), the second event would never reach the client and this test
// would fail deterministically instead of passing on a scheduling
// accident.
func TestEndToEndSSEStartAndSendEvent(t *testing.T) {
	cfg := config.Default()
	started := make(chan struct{})
	proceed := make(chan struct{})
	finished := make(chan struct{})
	srv := newTestServer(t, cfg, func(r *Router) {
		require.NoError(t, r.Get("/events", func(e *Event) error {
			if err := e.StartSSE(); err != nil {
				return err
			}
			e.SetStreamCallback(func(w *sse.Writer) {
				_ = w.SendEvent(sse.Event{Data: "0", Name: "counter", ID: "0"})
				close(started)
				<-proceed
				_ = w.SendEvent(sse.Event{Data: "1", Name: "counter", ID: "1"})
				_ = w.Close()
				close(finished)
			})
			return nil
		}))
	})

	client, server := net.Pipe()
	defer client.Close()
	c := newConn(srv, server)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.serve(ctx)

	_, err := client.Write([]byte("GET /events HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	br := bufio.NewReader(client)
	statusLine, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", statusLine)

	var sawContentType, sawCacheControl, sawConnection bool
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
		switch {
		case len(line) >= 12 && line[:12] == "Content-Type":
			sawContentType = true
			assert.Contains(t, line, "text/event-stream")
		case len(line) >= 13 && line[:13] == "Cache-Control":
			sawCacheControl = true
		case len(line) >= 10 && line[:10] == "Connection":
			sawConnection = true
		}
	}
	assert.True(t, sawContentType)
	assert.True(t, sawCacheControl)
	assert.False(t, sawConnection, "Connection header must be omitted once streaming")

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("stream callback never ran")
	}
	readSSEEvent(t, br, "counter", "0")

	// serve()'s own goroutine has already returned by this point (it
	// dispatched the callback onto the loop and exited its function body);
	// the connection's loop and socket must still be alive here.
	close(proceed)

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("stream callback never finished")
	}
	readSSEEvent(t, br, "counter", "1")

	// Only once the writer has closed and the queue has drained does the
	// connection actually tear down: the client now observes the pipe
	// closing instead of being able to read further.
	_, err = br.ReadByte()
	assert.True(t, isTransportClosed(err), "expected a transport-closed error once the stream finishes, got %v", err)
}

// TestEndToEndSSEBackpressureReturnsBufferFull drives §8 scenario 6: with
// MAX_QUEUE=64, an event whose framed size exceeds 64 bytes still clears
// an empty queue (it becomes the single in-flight write, which never
// counts against the cap), but a second such event sent immediately after
// — while the stream is still marked writing, regardless of whether the
// physical write has completed yet — returns BufferFull. The client
// deliberately never reads the first event's bytes, so even if the
// second check raced the write goroutine, the outstanding physical write
// keeps the stream in the writing state for the whole test.
func TestEndToEndSSEBackpressureReturnsBufferFull(t *testing.T) {
	cfg := config.Default()
	cfg.Streaming.SSEMaxQueueBytes = 64
	firstResult := make(chan error, 1)
	secondResult := make(chan error, 1)
	srv := newTestServer(t, cfg, func(r *Router) {
		require.NoError(t, r.Get("/events", func(e *Event) error {
			if err := e.StartSSE(); err != nil {
				return err
			}
			e.SetStreamCallback(func(w *sse.Writer) {
				data := make([]byte, 70) // framed size comfortably exceeds the 64-byte cap
				for i := range data {
					data[i] = 'x'
				}
				firstResult <- w.SendEvent(sse.Event{Name: "counter", Data: string(data)})
				secondResult <- w.SendEvent(sse.Event{Name: "counter", Data: string(data)})
			})
			return nil
		}))
	})

	client, server := net.Pipe()
	defer client.Close()
	c := newConn(srv, server)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.serve(ctx)

	_, err := client.Write([]byte("GET /events HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	br := bufio.NewReader(client)
	statusLine, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", statusLine)
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
	}

	select {
	case err := <-firstResult:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first SendEvent never returned")
	}

	select {
	case err := <-secondResult:
		assert.ErrorIs(t, err, errs.ErrBufferFull)
	case <-time.After(2 * time.Second):
		t.Fatal("second SendEvent never returned")
	}
}
