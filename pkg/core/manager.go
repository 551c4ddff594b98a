// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/future"
)

// DefaultTickInterval bounds how long an idle loop sleeps before re-checking timers.
const DefaultTickInterval = 100 * time.Millisecond

// Manager owns the handler registry, the pending event queue and the registered timers,
// and runs the dispatch loop. Fire, Register and Unregister are safe from any goroutine;
// handlers run one at a time on the goroutine calling Flush, Tick or Run.
type Manager struct {
	reg *registry

	qmu   sync.Mutex
	queue []queueItem
	wake  chan struct{}

	tmu    sync.Mutex
	timers map[*Timer]struct{}

	// dispatchMu serializes Flush so handlers never run concurrently.
	dispatchMu sync.Mutex

	running atomic.Bool
	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan error

	logger       zerolog.Logger
	observer     Observer
	tickInterval time.Duration
	now          func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.With().Str("component", "manager").Logger()
	}
}

// WithObserver installs a dispatch observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithTickInterval sets the maximum idle sleep of Run.
func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.tickInterval = d
		}
	}
}

// WithClock replaces the time source used for timer deadlines.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates an idle manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		reg:          newRegistry(),
		wake:         make(chan struct{}, 1),
		timers:       make(map[*Timer]struct{}),
		logger:       zerolog.Nop(),
		observer:     NopObserver{},
		tickInterval: DefaultTickInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fire queues e for dispatch and returns the Value that will hold the aggregate result.
// Handlers are resolved when the event is dispatched, not when it is fired.
func (m *Manager) Fire(e *event.Event) (*future.Value, error) {
	if e == nil {
		return nil, newInvalidEventError("nil event")
	}
	if e.Name() == "" {
		return nil, newInvalidEventError("empty event name")
	}

	v := future.New()
	m.enqueue(queueItem{d: newDispatch(e, v)})
	m.observer.EventFired(e)
	return v, nil
}

// Emit builds an event from name and options and fires it.
func (m *Manager) Emit(name string, opts ...event.Option) (*future.Value, error) {
	return m.Fire(event.New(name, opts...))
}

// Register binds c and its children. Components already bound to m are skipped; a
// registered event is fired for every newly bound component.
func (m *Manager) Register(c *Component) error {
	if other := c.Manager(); other != nil && other != m {
		return WithErrorCode(ErrAlreadyRegistered, errorCodeAlreadyRegistered)
	}

	var added []*Component
	m.reg.mu.Lock()
	for _, n := range c.tree() {
		if _, ok := m.reg.byComponent[n.id]; ok {
			continue
		}
		if other := n.Manager(); other != nil && other != m {
			m.logger.Warn().Str("child", n.name).Msg("Child bound to another manager, skipping")
			continue
		}
		m.reg.bindLocked(n, n.attach(m))
		added = append(added, n)
	}
	m.reg.mu.Unlock()

	for _, n := range added {
		m.logger.Debug().Str("target", n.name).Str("channel", n.channel).Msg("Component registered")
		m.fireLifecycle(event.NameRegistered, n)
	}
	return nil
}

// Unregister removes every handler of c and its children. Unregistering a component
// that is not bound to m does nothing.
func (m *Manager) Unregister(c *Component) {
	var removed []*Component
	m.reg.mu.Lock()
	for _, n := range c.tree() {
		if n.Manager() != m {
			continue
		}
		if m.reg.removeLocked(n) {
			removed = append(removed, n)
		}
		n.detach()
	}
	m.reg.mu.Unlock()

	for _, n := range removed {
		m.logger.Debug().Str("target", n.name).Msg("Component unregistered")
		m.fireLifecycle(event.NameUnregistered, n)
	}
}

func (m *Manager) fireLifecycle(name string, c *Component) {
	_, _ = m.Fire(event.New(name,
		event.WithArgs(c.name),
		event.WithKwarg("channel", c.channel),
	))
}

// Handlers lists the names of the handlers an event with this name and channel would
// reach, in invocation order.
func (m *Manager) Handlers(name, channel string) []string {
	list := m.reg.resolve(name, channel)
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.spec.Name
	}
	return out
}

// HandlerCount returns the number of live handler bindings.
func (m *Manager) HandlerCount() int {
	return m.reg.count()
}

// Pending returns the number of queued items.
func (m *Manager) Pending() int {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	return len(m.queue)
}

func (m *Manager) enqueue(it queueItem) {
	m.qmu.Lock()
	m.queue = append(m.queue, it)
	depth := len(m.queue)
	m.qmu.Unlock()

	m.observer.QueueDepth(depth)
	m.signal()
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) takeQueue() []queueItem {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	items := m.queue
	m.queue = nil
	return items
}

// requeue puts unprocessed items back ahead of anything queued since they were taken.
func (m *Manager) requeue(items []queueItem) {
	if len(items) == 0 {
		return
	}
	m.qmu.Lock()
	m.queue = append(append(make([]queueItem, 0, len(items)+len(m.queue)), items...), m.queue...)
	m.qmu.Unlock()
	m.signal()
}

// Flush dispatches the items that were queued when it was called, in FIFO order.
// Events fired by handlers during the flush wait for the next one. A failure inside an
// error handler stops the flush with a *FatalError; remaining items stay queued.
func (m *Manager) Flush(ctx context.Context) error {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	items := m.takeQueue()
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			m.requeue(items[i:])
			return err
		}
		if err := m.process(ctx, it); err != nil {
			m.requeue(items[i+1:])
			m.logger.Error().Err(err).Msg("Dispatch loop aborted")
			return err
		}
	}
	return nil
}

// Tick fires due timers and then flushes the queue.
func (m *Manager) Tick(ctx context.Context) error {
	m.pollTimers(m.now())
	return m.Flush(ctx)
}

// Run fires started and loops until ctx is cancelled or a fatal error occurs. On
// cancellation it fires stopped, flushes once more and returns nil.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return WithErrorCode(ErrLoopRunning, errorCodeRunning)
	}
	defer m.running.Store(false)

	m.logger.Info().Msg("Dispatch loop started")
	_, _ = m.Emit(event.NameStarted)

	for {
		if err := m.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		if ctx.Err() != nil {
			break
		}
		if m.Pending() > 0 {
			continue
		}

		sleep := time.NewTimer(m.idleWait())
		select {
		case <-ctx.Done():
		case <-m.wake:
		case <-sleep.C:
		}
		sleep.Stop()
	}

	_, _ = m.Emit(event.NameStopped)
	err := m.Flush(context.WithoutCancel(ctx))
	m.logger.Info().Msg("Dispatch loop stopped")
	return err
}

// Start runs the loop on a new goroutine.
func (m *Manager) Start(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.cancel != nil {
		return WithErrorCode(ErrLoopRunning, errorCodeRunning)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan error, 1)
	go func(done chan<- error) {
		done <- m.Run(runCtx)
	}(m.done)
	return nil
}

// Stop cancels a loop started with Start and waits for it to exit, returning the
// loop's error.
func (m *Manager) Stop() error {
	m.lifeMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.lifeMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return <-done
}

// Running reports whether Run is executing.
func (m *Manager) Running() bool {
	return m.running.Load()
}

func (m *Manager) idleWait() time.Duration {
	wait := m.tickInterval
	if next, ok := m.nextDeadline(); ok {
		if d := next.Sub(m.now()); d < wait {
			wait = d
		}
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}
