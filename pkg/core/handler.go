// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package core

import (
	"context"
	"strings"

	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/future"
)

// Handler priorities. Higher values run first; any integer is allowed.
const (
	PriorityHigh   = 100
	PriorityNormal = 0
	PriorityLow    = -100
)

// HandlerFunc handles an event. A nil result contributes nothing to the event's
// aggregate result. Returning a *future.Value chains the slot to that value; returning
// the result of Await suspends the handler cooperatively.
type HandlerFunc func(ctx context.Context, e *event.Event) (any, error)

// FilterFunc rejects an otherwise matching event by returning false.
type FilterFunc func(e *event.Event) bool

// HandlerSpec is the declarative registration of one handler.
type HandlerSpec struct {
	// Name identifies the handler in error events and diagnostics.
	Name string

	// Events lists the event names answered; event.Wildcard matches any name.
	Events []string

	// Channel overrides the component channel; event.Wildcard matches every channel.
	Channel string

	// Priority orders handlers within one event's dispatch (higher first).
	Priority int

	// Filter optionally rejects matching events.
	Filter FilterFunc

	// Fn is the handler body.
	Fn HandlerFunc
}

// HandlerOption adjusts a HandlerSpec declared with Component.On.
type HandlerOption func(*HandlerSpec)

// WithPriority sets the handler priority.
func WithPriority(p int) HandlerOption {
	return func(s *HandlerSpec) { s.Priority = p }
}

// OnChannel sets an explicit handler channel.
func OnChannel(channel string) HandlerOption {
	return func(s *HandlerSpec) { s.Channel = channel }
}

// WithFilter sets a filter predicate.
func WithFilter(f FilterFunc) HandlerOption {
	return func(s *HandlerSpec) { s.Filter = f }
}

// Named sets the handler name.
func Named(name string) HandlerOption {
	return func(s *HandlerSpec) { s.Name = name }
}

// AlsoOn adds further event names answered by the handler.
func AlsoOn(names ...string) HandlerOption {
	return func(s *HandlerSpec) { s.Events = append(s.Events, names...) }
}

func (s HandlerSpec) answers(name string) bool {
	for _, n := range s.Events {
		if n == name || n == event.Wildcard {
			return true
		}
	}
	return false
}

func (s HandlerSpec) defaultName(component string) string {
	return component + "." + strings.Join(s.Events, ",")
}

// Continuation resumes a suspended handler with the outcome of the value it awaited.
type Continuation func(ctx context.Context, result any, err error) (any, error)

// Suspension is returned by a cooperative handler that waits on a Value.
type Suspension struct {
	value *future.Value
	next  Continuation
}

// Await suspends the calling handler until v resolves, then runs next on the dispatch
// loop. The handler's slot in the event result is filled by what next returns.
func Await(v *future.Value, next Continuation) *Suspension {
	return &Suspension{value: v, next: next}
}

func passThrough(_ context.Context, result any, err error) (any, error) {
	return result, err
}
