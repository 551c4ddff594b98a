// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package future provides Value, a single-assignment placeholder for a result that is
// not known yet.
//
// A Value is created by whoever starts the work (usually the dispatch core when an
// event is fired) and resolved exactly once, either with a result or with an error.
// Readers inside the dispatch loop poll with Result; goroutines outside the loop may
// block with Wait.
package future

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotReady is returned by Result while the value is unresolved.
	ErrNotReady = errors.New("value not ready")

	// ErrAlreadyResolved is returned when resolving a value a second time.
	ErrAlreadyResolved = errors.New("value already resolved")
)

// Value is a single-assignment future. The zero value is not usable; call New.
type Value struct {
	mu        sync.Mutex
	ready     bool
	result    any
	err       error
	done      chan struct{}
	callbacks []func(any, error)
}

// New returns an unresolved Value.
func New() *Value {
	return &Value{done: make(chan struct{})}
}

// Resolved returns a Value already resolved with result.
func Resolved(result any) *Value {
	v := New()
	_ = v.Resolve(result)
	return v
}

// Failed returns a Value already resolved with err.
func Failed(err error) *Value {
	v := New()
	_ = v.Fail(err)
	return v
}

// Resolve sets the result. It fails with ErrAlreadyResolved on a second call.
func (v *Value) Resolve(result any) error {
	return v.settle(result, nil)
}

// Fail resolves the value with an error. It fails with ErrAlreadyResolved on a
// second call.
func (v *Value) Fail(err error) error {
	if err == nil {
		err = errors.New("future failed with nil error")
	}
	return v.settle(nil, err)
}

func (v *Value) settle(result any, err error) error {
	v.mu.Lock()
	if v.ready {
		v.mu.Unlock()
		return ErrAlreadyResolved
	}
	v.ready = true
	v.result = result
	v.err = err
	callbacks := v.callbacks
	v.callbacks = nil
	close(v.done)
	v.mu.Unlock()

	for _, fn := range callbacks {
		fn(result, err)
	}
	return nil
}

// Ready reports whether the value has been resolved.
func (v *Value) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// Result returns the resolved result without blocking. It returns ErrNotReady while
// unresolved and the failure error when resolved with Fail.
func (v *Value) Result() (any, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.ready {
		return nil, ErrNotReady
	}
	return v.result, v.err
}

// Wait blocks until the value resolves or ctx is done. Calling Wait from the dispatch
// loop for a value that only the loop can resolve never returns.
func (v *Value) Wait(ctx context.Context) (any, error) {
	select {
	case <-v.done:
		return v.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed once the value resolves.
func (v *Value) Done() <-chan struct{} {
	return v.done
}

// OnResolve registers fn to run once after resolution, on the resolving goroutine.
// If the value is already resolved fn runs immediately on the caller's goroutine.
func (v *Value) OnResolve(fn func(result any, err error)) {
	v.mu.Lock()
	if !v.ready {
		v.callbacks = append(v.callbacks, fn)
		v.mu.Unlock()
		return
	}
	result, err := v.result, v.err
	v.mu.Unlock()
	fn(result, err)
}

// Go runs fn on a new goroutine and returns a Value resolved with its outcome.
// It suits work that does not need to report back through a dispatch loop.
func Go(fn func() (any, error)) *Value {
	v := New()
	go func() {
		result, err := fn()
		if err != nil {
			_ = v.Fail(err)
			return
		}
		_ = v.Resolve(result)
	}()
	return v
}
