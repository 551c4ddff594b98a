// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/circuitry/pkg/bridge"
	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/worker"
)

func TestCollector_ObservesDispatch(t *testing.T) {
	c := New(false)
	m := core.NewManager(core.WithObserver(c))

	comp := core.NewComponent("boom", "")
	comp.On("ping", func(context.Context, *event.Event) (any, error) { return "pong", nil })
	comp.On("explode", func(context.Context, *event.Event) (any, error) { return nil, errors.New("kaboom") })
	require.NoError(t, m.Register(comp))

	_, err := m.Emit("ping")
	require.NoError(t, err)
	_, err = m.Emit("explode")
	require.NoError(t, err)
	require.NoError(t, m.Flush(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.fired.WithLabelValues("ping", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fired.WithLabelValues(event.NameError, "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatched.WithLabelValues("ping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("explode", "boom.explode")))
}

func TestCollector_BridgeStats(t *testing.T) {
	var s bridge.Stats = New(false)
	c := s.(*Collector)

	s.FrameSent()
	s.FrameSent()
	s.FrameReceived()
	s.FrameDropped(bridge.DropOverflow)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.frames.WithLabelValues("out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.frames.WithLabelValues("in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dropped.WithLabelValues(bridge.DropOverflow)))
}

func TestCollector_WorkerStats(t *testing.T) {
	c := New(false)
	m := core.NewManager(core.WithTickInterval(5 * time.Millisecond))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop() })

	p := worker.NewPool(m, 2, worker.WithStats(c))
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.Stop(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok := p.Submit(func(context.Context, []any) (any, error) { return 1, nil })
	_, err := ok.Wait(ctx)
	require.NoError(t, err)

	bad := p.Submit(func(context.Context, []any) (any, error) { return nil, errors.New("nope") })
	_, err = bad.Wait(ctx)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobs.WithLabelValues(worker.DefaultChannel, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobs.WithLabelValues(worker.DefaultChannel, "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight.WithLabelValues(worker.DefaultChannel)))
}

func TestCollector_Handler(t *testing.T) {
	c := New(true)
	c.QueueDepth(3)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "circuitry_queue_depth 3")
	assert.Contains(t, string(body), "go_goroutines")
}
