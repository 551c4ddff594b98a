// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package worker runs blocking work off the dispatch loop. Results come back through
// worker_done events so Values are always resolved on the loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/future"
)

const (
	// DefaultConcurrency is used when a non-positive concurrency is requested.
	DefaultConcurrency = 4
	// DefaultQueueSize bounds the number of submitted but not yet running tasks.
	DefaultQueueSize = 100
	// DefaultChannel is the channel of the pool component and its worker_done events.
	DefaultChannel = "worker"
)

var (
	// ErrNotStarted is returned for tasks submitted to a pool that is not running.
	ErrNotStarted = errors.New("worker pool not started")
	// ErrQueueFull is returned when the task queue has no room.
	ErrQueueFull = errors.New("worker queue full")
	// ErrStopped fails tasks still pending when the pool stops.
	ErrStopped = errors.New("worker pool stopped")
)

// Task is a unit of blocking work.
type Task func(ctx context.Context, args []any) (any, error)

// Stats receives job counters.
type Stats interface {
	JobStarted(pool string)
	JobFinished(pool string, elapsed time.Duration, err error)
}

type nopStats struct{}

func (nopStats) JobStarted(string)                        {}
func (nopStats) JobFinished(string, time.Duration, error) {}

type job struct {
	id   string
	task Task
	args []any
}

type outcome struct {
	result any
	err    error
}

// Pool runs tasks on a fixed set of goroutines.
type Pool struct {
	*core.Component

	manager     *core.Manager
	concurrency int
	queueSize   int
	timeout     time.Duration
	logger      zerolog.Logger
	stats       Stats

	queue      chan job
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
	mu         sync.RWMutex
	started    bool

	pmu     sync.Mutex
	pending map[string]*future.Value
	done    map[string]outcome
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pool) { p.logger = logger.With().Str("component", "worker").Logger() }
}

// WithQueueSize bounds the task queue.
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithTimeout bounds each task's run time.
func WithTimeout(d time.Duration) Option {
	return func(p *Pool) { p.timeout = d }
}

// WithStats installs job counters.
func WithStats(s Stats) Option {
	return func(p *Pool) {
		if s != nil {
			p.stats = s
		}
	}
}

// WithChannel changes the pool channel.
func WithChannel(channel string) Option {
	return func(p *Pool) { p.Component = core.NewComponent(p.Name(), channel) }
}

// NewPool creates a pool for m. If concurrency <= 0, defaults to DefaultConcurrency.
func NewPool(m *core.Manager, concurrency int, opts ...Option) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	p := &Pool{
		Component:   core.NewComponent("worker", DefaultChannel),
		manager:     m,
		concurrency: concurrency,
		queueSize:   DefaultQueueSize,
		logger:      zerolog.Nop(),
		stats:       nopStats{},
		pending:     make(map[string]*future.Value),
		done:        make(map[string]outcome),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan job, p.queueSize)
	p.On(event.NameWorkerDone, p.complete, core.Named(p.Name()+".complete"))
	return p
}

// Start registers the pool and spawns its workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	if err := p.manager.Register(p.Component); err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	p.cancelFunc = cancel

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.worker(workerCtx, i)
	}

	p.started = true
	p.logger.Info().
		Str("channel", p.Channel()).
		Int("workers", p.concurrency).
		Msg("Worker pool started")
	return nil
}

// Stop cancels the workers, waits for in-flight tasks within ctx and fails every
// task that has not completed.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	if p.cancelFunc != nil {
		p.cancelFunc()
	}
	p.started = false
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		p.logger.Info().Msg("Worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn().Msg("Worker pool shutdown timed out")
		err = ctx.Err()
	}

	p.failPending()
	p.Unregister()
	return err
}

// Running reports whether the pool accepts tasks.
func (p *Pool) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

// Submit queues task and returns a Value resolved on the dispatch loop once the task
// finishes. Handlers may return the Value to chain their result to the task.
func (p *Pool) Submit(task Task, args ...any) *future.Value {
	v := future.New()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.started {
		_ = v.Fail(ErrNotStarted)
		return v
	}

	j := job{id: uuid.NewString(), task: task, args: args}
	p.pmu.Lock()
	p.pending[j.id] = v
	p.pmu.Unlock()

	select {
	case p.queue <- j:
	default:
		p.pmu.Lock()
		delete(p.pending, j.id)
		p.pmu.Unlock()
		_ = v.Fail(ErrQueueFull)
	}
	return v
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug().Int("worker_id", id).Msg("Worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug().Int("worker_id", id).Msg("Worker stopping")
			return
		case j := <-p.queue:
			p.run(ctx, id, j)
		}
	}
}

func (p *Pool) run(ctx context.Context, workerID int, j job) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.logger.Debug().Int("worker_id", workerID).Str("job_id", j.id).Msg("Processing job")
	p.stats.JobStarted(p.Channel())
	start := time.Now()
	result, err := runTask(ctx, j)
	p.stats.JobFinished(p.Channel(), time.Since(start), err)

	p.pmu.Lock()
	p.done[j.id] = outcome{result: result, err: err}
	p.pmu.Unlock()

	if _, ferr := p.manager.Emit(event.NameWorkerDone,
		event.WithChannel(p.Channel()),
		event.WithKwargs(map[string]any{"job": j.id, "ok": err == nil}),
	); ferr != nil {
		p.logger.Error().Err(ferr).Str("job_id", j.id).Msg("Failed to report job completion")
	}
}

func runTask(ctx context.Context, j job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &core.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return j.task(ctx, j.args)
}

// complete resolves a task's Value on the dispatch loop.
func (p *Pool) complete(_ context.Context, e *event.Event) (any, error) {
	idDatum, _ := e.Kwarg("job")
	id, _ := idDatum.AsString()

	p.pmu.Lock()
	v, ok := p.pending[id]
	out := p.done[id]
	delete(p.pending, id)
	delete(p.done, id)
	p.pmu.Unlock()

	if !ok {
		return nil, nil
	}
	if out.err != nil {
		_ = v.Fail(out.err)
	} else {
		_ = v.Resolve(out.result)
	}
	return nil, nil
}

func (p *Pool) failPending() {
	p.pmu.Lock()
	pending := p.pending
	p.pending = make(map[string]*future.Value)
	p.done = make(map[string]outcome)
	p.pmu.Unlock()

	for _, v := range pending {
		_ = v.Fail(ErrStopped)
	}
}
