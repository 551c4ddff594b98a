// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package event defines the record fired into a dispatch core: a named message with a
// positional and keyword payload, a target channel and a small amount of mutable
// dispatch metadata.
package event

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Event is something that happened. Name, channel and payload are fixed at construction;
// only dispatch metadata (the stop flag) changes once the event is queued.
type Event struct {
	id      string
	name    string
	channel string
	args    []Datum
	kwargs  map[string]Datum

	injected bool
	notify   bool
	success  bool
	failure  bool

	stopped atomic.Bool
}

// Option configures an Event at construction time.
type Option func(*Event)

// WithChannel targets the event at a channel. The empty channel is global.
func WithChannel(channel string) Option {
	return func(e *Event) {
		e.channel = channel
	}
}

// WithArgs sets the positional payload. Values are converted with Of.
func WithArgs(values ...any) Option {
	return func(e *Event) {
		e.args = make([]Datum, len(values))
		for i, v := range values {
			e.args[i] = Of(v)
		}
	}
}

// WithKwargs merges keyword payload values. Values are converted with Of.
func WithKwargs(values map[string]any) Option {
	return func(e *Event) {
		for k, v := range values {
			e.kwargs[k] = Of(v)
		}
	}
}

// WithKwarg sets a single keyword payload value.
func WithKwarg(key string, value any) Option {
	return func(e *Event) {
		e.kwargs[key] = Of(value)
	}
}

// WithNotify requests a value_changed event once the event's result is resolved.
func WithNotify() Option {
	return func(e *Event) { e.notify = true }
}

// WithSuccess requests a <name>_success event carrying the resolved result.
func WithSuccess() Option {
	return func(e *Event) { e.success = true }
}

// WithFailure requests a <name>_failure event for every failing handler.
func WithFailure() Option {
	return func(e *Event) { e.failure = true }
}

// WithInjected marks the event as injected by a bridge. Bridges never forward
// injected events.
func WithInjected() Option {
	return func(e *Event) { e.injected = true }
}

// New creates an event. An empty name is accepted here and rejected when fired.
func New(name string, opts ...Option) *Event {
	e := &Event{
		id:     uuid.NewString(),
		name:   name,
		kwargs: make(map[string]Datum),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the unique identifier assigned at construction.
func (e *Event) ID() string { return e.id }

// Name returns the event name used for handler matching.
func (e *Event) Name() string { return e.name }

// Channel returns the target channel; empty means global.
func (e *Event) Channel() string { return e.channel }

// Args returns a copy of the positional payload.
func (e *Event) Args() []Datum {
	out := make([]Datum, len(e.args))
	copy(out, e.args)
	return out
}

// Arg returns the positional value at i, or a null Datum when out of range.
func (e *Event) Arg(i int) Datum {
	if i < 0 || i >= len(e.args) {
		return Datum{}
	}
	return e.args[i]
}

// NumArgs returns the number of positional values.
func (e *Event) NumArgs() int { return len(e.args) }

// Kwargs returns a copy of the keyword payload.
func (e *Event) Kwargs() map[string]Datum {
	out := make(map[string]Datum, len(e.kwargs))
	for k, v := range e.kwargs {
		out[k] = v
	}
	return out
}

// Kwarg returns the keyword value for key.
func (e *Event) Kwarg(key string) (Datum, bool) {
	v, ok := e.kwargs[key]
	return v, ok
}

// Injected reports whether a bridge injected this event.
func (e *Event) Injected() bool { return e.injected }

// Notify reports whether value_changed should fire on resolution.
func (e *Event) Notify() bool { return e.notify }

// Success reports whether <name>_success should fire on resolution.
func (e *Event) Success() bool { return e.success }

// Failure reports whether <name>_failure should fire on handler errors.
func (e *Event) Failure() bool { return e.failure }

// Stop halts invocation of the remaining handlers for this event.
func (e *Event) Stop() { e.stopped.Store(true) }

// Stopped reports whether a handler called Stop.
func (e *Event) Stopped() bool { return e.stopped.Load() }

// Serializable reports whether every payload value can be encoded on the wire.
func (e *Event) Serializable() bool {
	for _, a := range e.args {
		if !a.Serializable() {
			return false
		}
	}
	for _, v := range e.kwargs {
		if !v.Serializable() {
			return false
		}
	}
	return true
}

// Clone returns a fresh event with the same name, channel, payload and flags, a new id
// and cleared dispatch metadata.
func (e *Event) Clone(opts ...Option) *Event {
	c := &Event{
		id:       uuid.NewString(),
		name:     e.name,
		channel:  e.channel,
		args:     e.Args(),
		kwargs:   e.Kwargs(),
		injected: e.injected,
		notify:   e.notify,
		success:  e.success,
		failure:  e.failure,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// String renders the event as <name[channel] (args) {kwargs}>.
func (e *Event) String() string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(e.name)
	if e.channel != "" {
		b.WriteString("[" + e.channel + "]")
	}
	args := make([]string, len(e.args))
	for i, a := range e.args {
		args[i] = a.String()
	}
	fmt.Fprintf(&b, " (%s)", strings.Join(args, ", "))
	if len(e.kwargs) > 0 {
		keys := make([]string, 0, len(e.kwargs))
		for k := range e.kwargs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + e.kwargs[k].String()
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(pairs, ", "))
	}
	b.WriteString(">")
	return b.String()
}
