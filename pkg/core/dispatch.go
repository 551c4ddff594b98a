// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package core

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/future"
)

// invocationState tracks one handler call through cooperative suspension.
type invocationState int

const (
	statePending invocationState = iota
	stateSuspended
	stateResumed
	stateDone
)

func (s invocationState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateSuspended:
		return "suspended"
	case stateResumed:
		return "resumed"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// dispatch collects the outcome of every handler invoked for one fired event.
type dispatch struct {
	e     *event.Event
	value *future.Value

	slots   []any
	failed  error
	pending int
	invoked bool
	settled bool
	fatal   bool

	handlers int
	started  time.Time
}

func newDispatch(e *event.Event, v *future.Value) *dispatch {
	return &dispatch{e: e, value: v, fatal: e.Name() == event.NameError}
}

type invocation struct {
	d     *dispatch
	b     *binding
	slot  int
	state invocationState
}

// queueItem is either a fired event or the resumption of a suspended handler.
type queueItem struct {
	d *dispatch

	inv    *invocation
	next   Continuation
	result any
	err    error
}

func (m *Manager) process(ctx context.Context, it queueItem) error {
	if it.inv != nil {
		return m.resume(ctx, it)
	}
	return m.dispatch(ctx, it.d)
}

func (m *Manager) dispatch(ctx context.Context, d *dispatch) error {
	d.started = time.Now()
	bindings := m.reg.resolve(d.e.Name(), d.e.Channel())

	for _, b := range bindings {
		if d.e.Stopped() {
			m.logger.Debug().Str("event", d.e.Name()).Msg("Dispatch stopped by handler")
			break
		}

		inv := &invocation{d: d, b: b, slot: len(d.slots)}
		d.slots = append(d.slots, nil)

		if b.spec.Filter != nil {
			pass, err := safeCall(func() (any, error) { return b.spec.Filter(d.e), nil })
			if err != nil {
				inv.state = stateDone
				if ferr := m.fail(ctx, inv, err); ferr != nil {
					return ferr
				}
				continue
			}
			if ok, _ := pass.(bool); !ok {
				inv.state = stateDone
				continue
			}
		}

		d.handlers++
		spec := b.spec
		res, err := safeCall(func() (any, error) { return spec.Fn(ctx, d.e) })
		if ferr := m.complete(ctx, inv, res, err); ferr != nil {
			return ferr
		}
	}

	d.invoked = true
	m.settle(d)
	return nil
}

func (m *Manager) resume(ctx context.Context, it queueItem) error {
	inv := it.inv
	d := inv.d
	d.pending--
	inv.state = stateResumed

	res, err := safeCall(func() (any, error) { return it.next(ctx, it.result, it.err) })
	if ferr := m.complete(ctx, inv, res, err); ferr != nil {
		return ferr
	}
	m.settle(d)
	return nil
}

// complete records a handler outcome: a failure, a suspension or a plain result.
func (m *Manager) complete(ctx context.Context, inv *invocation, res any, err error) error {
	if err != nil {
		inv.state = stateDone
		return m.fail(ctx, inv, err)
	}

	var s *Suspension
	switch x := res.(type) {
	case *Suspension:
		s = x
	case *future.Value:
		s = Await(x, passThrough)
	}
	if s == nil {
		inv.state = stateDone
		inv.d.slots[inv.slot] = res
		return nil
	}

	if s.value == nil || s.next == nil {
		inv.state = stateDone
		return m.fail(ctx, inv, errors.New("incomplete suspension"))
	}

	inv.state = stateSuspended
	inv.d.pending++
	next := s.next
	s.value.OnResolve(func(result any, err error) {
		m.enqueue(queueItem{inv: inv, next: next, result: result, err: err})
	})
	return nil
}

// fail reports a handler failure. Failures while dispatching an error event are fatal;
// other failures are raised as an error event dispatched before anything still queued.
func (m *Manager) fail(ctx context.Context, inv *invocation, err error) error {
	d := inv.d
	herr := &HandlerError{
		Handler: inv.b.spec.Name,
		Event:   d.e.Name(),
		Channel: d.e.Channel(),
		Err:     err,
	}

	m.observer.HandlerFailed(d.e, herr.Handler, err)
	m.logger.Debug().Err(err).Str("handler", herr.Handler).Str("event", herr.Event).Msg("Handler failed")

	if d.fatal {
		fatal := &FatalError{Err: herr}
		m.abort(d, fatal)
		return fatal
	}
	if d.failed == nil {
		d.failed = herr
	}

	if d.e.Failure() {
		_, _ = m.Emit(event.FailureName(d.e.Name()),
			event.WithChannel(d.e.Channel()),
			event.WithArgs(herr),
			event.WithKwarg("error", err.Error()),
		)
	}

	errEvent := event.New(event.NameError,
		event.WithChannel(d.e.Channel()),
		event.WithArgs(herr),
		event.WithKwargs(map[string]any{
			"error":   err.Error(),
			"handler": herr.Handler,
			"event":   herr.Event,
			"channel": herr.Channel,
		}),
	)
	m.observer.EventFired(errEvent)
	if ferr := m.dispatch(ctx, newDispatch(errEvent, future.New())); ferr != nil {
		m.abort(d, ferr)
		return ferr
	}
	return nil
}

// abort fails the aggregate Value of a dispatch cut short by a fatal error.
// Invocations still suspended on it resume into a settled dispatch and are ignored.
func (m *Manager) abort(d *dispatch, err error) {
	if d.settled {
		return
	}
	d.settled = true
	_ = d.value.Fail(err)
}

// settle resolves the aggregate Value once every handler has been invoked and no
// invocation is suspended.
func (m *Manager) settle(d *dispatch) {
	if !d.invoked || d.pending > 0 || d.settled {
		return
	}
	d.settled = true

	results := make([]any, 0, len(d.slots))
	for _, r := range d.slots {
		if r != nil {
			results = append(results, r)
		}
	}

	if d.failed != nil {
		_ = d.value.Fail(d.failed)
	} else {
		_ = d.value.Resolve(results)
	}
	m.observer.EventDispatched(d.e, d.handlers, time.Since(d.started))

	if d.e.Success() && d.failed == nil {
		_, _ = m.Emit(event.SuccessName(d.e.Name()),
			event.WithChannel(d.e.Channel()),
			event.WithArgs(results...),
		)
	}
	if d.e.Notify() {
		_, _ = m.Emit(event.NameValueChanged,
			event.WithChannel(d.e.Channel()),
			event.WithArgs(results...),
			event.WithKwarg("event", d.e.Name()),
		)
	}
}

func safeCall(fn func() (any, error)) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
