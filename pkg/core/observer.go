// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package core

import (
	"time"

	"github.com/vulntor/circuitry/pkg/event"
)

// Observer receives dispatch notifications from a Manager. Implementations are called
// from the dispatching goroutine (EventDispatched, HandlerFailed) and from any goroutine
// calling Fire (EventFired, QueueDepth), so they must be safe for concurrent use and
// must not block.
type Observer interface {
	EventFired(e *event.Event)
	EventDispatched(e *event.Event, handlers int, elapsed time.Duration)
	HandlerFailed(e *event.Event, handler string, err error)
	QueueDepth(depth int)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) EventFired(*event.Event)                          {}
func (NopObserver) EventDispatched(*event.Event, int, time.Duration) {}
func (NopObserver) HandlerFailed(*event.Event, string, error)        {}
func (NopObserver) QueueDepth(int)                                   {}

var _ Observer = NopObserver{}
