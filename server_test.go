/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h3

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/badu/h3/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepIdleClosesOnlyExpiredConnections(t *testing.T) {
	cfg := config.Default()
	r := NewRouter(cfg.Router.CacheCapacity)
	srv := New(cfg, r, nil)

	now := time.Now()
	srv.nowFn = func() time.Time { return now }

	freshClient, freshServer := net.Pipe()
	defer freshClient.Close()
	fresh := newConn(srv, freshServer)
	fresh.touch()

	staleClient, staleServer := net.Pipe()
	defer staleClient.Close()
	stale := newConn(srv, staleServer)
	stale.touch()

	srv.mu.Lock()
	srv.conns[fresh] = struct{}{}
	srv.conns[stale] = struct{}{}
	srv.mu.Unlock()

	// Advance the clock past the idle timeout for one connection only.
	srv.nowFn = func() time.Time { return now.Add(40 * time.Second) }
	fresh.touch()

	srv.sweepIdle(30 * time.Second)

	fresh.mu.Lock()
	freshState := fresh.state
	fresh.mu.Unlock()
	stale.mu.Lock()
	staleState := stale.state
	stale.mu.Unlock()

	assert.NotEqual(t, stateClosed, freshState)
	assert.Equal(t, stateClosed, staleState)
}

func TestAcceptLoopRejectsBeyondConnectionCap(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxConnections = 1
	r := NewRouter(cfg.Router.CacheCapacity)
	block := make(chan struct{})
	require.NoError(t, r.Get("/", func(e *Event) error {
		<-block
		return e.SendText("done")
	}))
	srv := New(cfg, r, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, ln) }()

	first, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer first.Close()
	_, err = first.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	// Give the accept loop time to register the first connection against
	// the semaphore before the second dial races it.
	time.Sleep(50 * time.Millisecond)

	second, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer second.Close()

	buf := make([]byte, 1)
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = second.Read(buf)
	assert.Error(t, err, "second connection beyond the cap should be closed by the server")

	close(block)
	cancel()
	<-serveErr
}
