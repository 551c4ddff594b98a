// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package metrics exports dispatch, bridge and worker counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vulntor/circuitry/pkg/bridge"
	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/worker"
)

const namespace = "circuitry"

// Metric names without the namespace prefix.
const (
	MEventsFired        = "events_fired_total"
	MEventsDispatched   = "events_dispatched_total"
	MDispatchDuration   = "dispatch_duration_seconds"
	MHandlerFailures    = "handler_failures_total"
	MQueueDepth         = "queue_depth"
	MBridgeFrames       = "bridge_frames_total"
	MBridgeDropped      = "bridge_frames_dropped_total"
	MWorkerJobs         = "worker_jobs_total"
	MWorkerJobsInFlight = "worker_jobs_in_flight"
	MWorkerJobDuration  = "worker_job_duration_seconds"
)

// Collector implements core.Observer, bridge.Stats and worker.Stats on a private registry.
type Collector struct {
	registry *prometheus.Registry

	fired      *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	failures   *prometheus.CounterVec
	depth      prometheus.Gauge

	frames  *prometheus.CounterVec
	dropped *prometheus.CounterVec

	jobs        *prometheus.CounterVec
	inFlight    *prometheus.GaugeVec
	jobDuration *prometheus.HistogramVec
}

var (
	_ core.Observer = (*Collector)(nil)
	_ bridge.Stats  = (*Collector)(nil)
	_ worker.Stats  = (*Collector)(nil)
)

// New creates a Collector. Go runtime and process collectors are included when
// withRuntime is true.
func New(withRuntime bool) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: MEventsFired, Help: "Events enqueued by name and channel.",
		}, []string{"event", "channel"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: MEventsDispatched, Help: "Events dispatched by name.",
		}, []string{"event"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: MDispatchDuration, Help: "Time spent running the handlers of one event.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"event"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: MHandlerFailures, Help: "Handler failures by event and handler.",
		}, []string{"event", "handler"}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: MQueueDepth, Help: "Items waiting in the dispatch queue.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: MBridgeFrames, Help: "Bridge frames by direction.",
		}, []string{"direction"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: MBridgeDropped, Help: "Events the bridge did not forward, by reason.",
		}, []string{"reason"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: MWorkerJobs, Help: "Finished worker jobs by pool and outcome.",
		}, []string{"pool", "outcome"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: MWorkerJobsInFlight, Help: "Worker jobs currently running.",
		}, []string{"pool"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: MWorkerJobDuration, Help: "Worker job run time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pool"}),
	}

	c.registry.MustRegister(
		c.fired, c.dispatched, c.duration, c.failures, c.depth,
		c.frames, c.dropped,
		c.jobs, c.inFlight, c.jobDuration,
	)
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// EventFired implements core.Observer.
func (c *Collector) EventFired(e *event.Event) {
	c.fired.WithLabelValues(e.Name(), e.Channel()).Inc()
}

// EventDispatched implements core.Observer.
func (c *Collector) EventDispatched(e *event.Event, _ int, elapsed time.Duration) {
	c.dispatched.WithLabelValues(e.Name()).Inc()
	c.duration.WithLabelValues(e.Name()).Observe(elapsed.Seconds())
}

// HandlerFailed implements core.Observer.
func (c *Collector) HandlerFailed(e *event.Event, handler string, _ error) {
	c.failures.WithLabelValues(e.Name(), handler).Inc()
}

// QueueDepth implements core.Observer.
func (c *Collector) QueueDepth(depth int) { c.depth.Set(float64(depth)) }

// FrameSent implements bridge.Stats.
func (c *Collector) FrameSent() { c.frames.WithLabelValues("out").Inc() }

// FrameReceived implements bridge.Stats.
func (c *Collector) FrameReceived() { c.frames.WithLabelValues("in").Inc() }

// FrameDropped implements bridge.Stats.
func (c *Collector) FrameDropped(reason string) { c.dropped.WithLabelValues(reason).Inc() }

// JobStarted implements worker.Stats.
func (c *Collector) JobStarted(pool string) { c.inFlight.WithLabelValues(pool).Inc() }

// JobFinished implements worker.Stats.
func (c *Collector) JobFinished(pool string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.inFlight.WithLabelValues(pool).Dec()
	c.jobs.WithLabelValues(pool, outcome).Inc()
	c.jobDuration.WithLabelValues(pool).Observe(elapsed.Seconds())
}
