// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package debugger provides a component that traces every dispatched event.
package debugger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/stringutil"
)

// Priority runs the debugger ahead of ordinary handlers so stopped events are traced.
const Priority = 10 * core.PriorityHigh

// Lipgloss styles for traced events
var (
	// Error events - red
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	// Lifecycle events - gray
	lifecycleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	// Events received over a bridge - cyan
	injectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	// <name>_success - green
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	// bridge_overflow, disconnected - yellow
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
)

var lifecycleEvents = map[string]bool{
	event.NameRegistered:   true,
	event.NameUnregistered: true,
	event.NameStarted:      true,
	event.NameStopped:      true,
	event.NameWorkerDone:   true,
}

// Debugger writes one line per event it sees. It never contributes a result.
type Debugger struct {
	*core.Component

	mu             sync.Mutex
	writer         io.Writer
	prefix         string
	maxWidth       int
	colorEnabled   bool
	ignoreEvents   map[string]bool
	ignoreChannels map[string]bool
}

// Option configures a Debugger.
type Option func(*Debugger)

// WithWriter sets the output writer (stderr by default).
func WithWriter(w io.Writer) Option {
	return func(d *Debugger) { d.writer = w }
}

// WithPrefix prepends a fixed string to every line.
func WithPrefix(prefix string) Option {
	return func(d *Debugger) { d.prefix = prefix }
}

// WithMaxWidth shortens lines longer than n runes. Zero keeps lines whole.
func WithMaxWidth(n int) Option {
	return func(d *Debugger) { d.maxWidth = n }
}

// NoColor disables styling.
func NoColor() Option {
	return func(d *Debugger) { d.colorEnabled = false }
}

// IgnoreEvents suppresses events by name.
func IgnoreEvents(names ...string) Option {
	return func(d *Debugger) {
		for _, n := range names {
			d.ignoreEvents[n] = true
		}
	}
}

// IgnoreChannels suppresses events by channel.
func IgnoreChannels(channels ...string) Option {
	return func(d *Debugger) {
		for _, c := range channels {
			d.ignoreChannels[c] = true
		}
	}
}

// New creates a debugger component. Register it with a manager to start tracing.
func New(opts ...Option) *Debugger {
	d := &Debugger{
		Component:      core.NewComponent("debugger", ""),
		writer:         os.Stderr,
		colorEnabled:   true,
		ignoreEvents:   make(map[string]bool),
		ignoreChannels: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.On(event.Wildcard, d.trace,
		core.OnChannel(event.Wildcard),
		core.WithPriority(Priority),
		core.Named("debugger.trace"),
		core.WithFilter(d.wants),
	)
	return d
}

func (d *Debugger) wants(e *event.Event) bool {
	return !d.ignoreEvents[e.Name()] && !d.ignoreChannels[e.Channel()]
}

func (d *Debugger) trace(_ context.Context, e *event.Event) (any, error) {
	line := d.prefix + e.String()
	if d.maxWidth > 0 {
		line = stringutil.Ellipsis(line, d.maxWidth)
	}
	if d.colorEnabled {
		line = style(e).Render(line)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.writer, line)
	return nil, nil
}

func style(e *event.Event) lipgloss.Style {
	name := e.Name()
	switch {
	case name == event.NameError || strings.HasSuffix(name, "_failure"):
		return errorStyle
	case name == event.NameBridgeOverflow || name == event.NameDisconnected:
		return warnStyle
	case strings.HasSuffix(name, "_success"):
		return successStyle
	case lifecycleEvents[name]:
		return lifecycleStyle
	case e.Injected():
		return injectedStyle
	default:
		return lipgloss.NewStyle()
	}
}
