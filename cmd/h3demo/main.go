/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Command h3demo wires up a small server exercising the end-to-end
// scenarios in SPEC_FULL.md §8: a plain GET, a parameterized route, a
// 404/405 pair, and an SSE counter stream. It is a demonstration binary,
// not part of the framework's package surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/badu/h3"
	"github.com/badu/h3/config"
	"github.com/badu/h3/logging"
	"github.com/badu/h3/sse"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config overriding the defaults")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Println("config load failed, using defaults:", err)
		} else {
			cfg = loaded
		}
	}

	logger := logging.NewDevelopment()
	defer logger.Sync()

	router := h3.NewRouter(cfg.Router.CacheCapacity)

	must(router.Get("/", func(e *h3.Event) error {
		return e.SendText("hello from h3")
	}))

	must(router.Get("/users/:id", func(e *h3.Event) error {
		return e.SendJSON(map[string]string{"id": e.Param("id")})
	}))

	must(router.Get("/events", func(e *h3.Event) error {
		if err := e.StartSSE(); err != nil {
			return err
		}
		e.SetTypedStreamHandler(h3.TypedStreamHandler{
			Mode: h3.StreamModeUnaryWithLoop,
			UnaryWithLoop: func(w *sse.Writer, loop *h3.Loop) {
				tick(w, loop, 0)
			},
		})
		return nil
	}))

	srv := h3.New(cfg, router, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Sugar().Infof("listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Sugar().Errorf("server stopped: %v", err)
	}
}

// tickInterval paces the demo counter stream at one event per second, per
// SPEC_FULL.md §8 scenario 5's 1000ms-spaced events.
const tickInterval = time.Second

// tick sends one counter event, then reschedules itself on the
// connection's loop a second later, until the client disconnects and the
// writer closes.
func tick(w *sse.Writer, loop *h3.Loop, n int) {
	if w.Closed() {
		return
	}
	err := w.SendEvent(sse.Event{Name: "counter", Data: fmt.Sprintf("%d", n)})
	if err != nil {
		_ = w.Close()
		return
	}
	loop.ScheduleAfter(tickInterval, func() { tick(w, loop, n+1) })
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
