// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package core

import (
	"sync"
	"time"

	"github.com/vulntor/circuitry/pkg/event"
)

// Timer fires a clone of its event once its deadline passes. Persistent timers re-arm
// by their interval; one-shot timers unregister after firing.
type Timer struct {
	mu       sync.Mutex
	interval time.Duration
	deadline time.Time
	persist  bool
	absolute bool
	event    *event.Event
	manager  *Manager
}

// NewTimer creates a timer due interval after it is registered.
func NewTimer(interval time.Duration, e *event.Event, persist bool) *Timer {
	return &Timer{interval: interval, event: e, persist: persist}
}

// NewTimerAt creates a one-shot timer due at an absolute time.
func NewTimerAt(deadline time.Time, e *event.Event) *Timer {
	return &Timer{deadline: deadline, absolute: true, event: e}
}

// Register arms the timer on m. Registering an armed timer re-arms it on m.
func (t *Timer) Register(m *Manager) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.manager != nil {
		t.manager.removeTimer(t)
	}
	if !t.absolute {
		t.deadline = m.now().Add(t.interval)
	}
	t.manager = m
	m.addTimer(t)
}

// Unregister disarms the timer. It is safe to call on a disarmed timer.
func (t *Timer) Unregister() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unregisterLocked()
}

func (t *Timer) unregisterLocked() {
	if t.manager == nil {
		return
	}
	t.manager.removeTimer(t)
	t.manager = nil
}

// Registered reports whether the timer is armed.
func (t *Timer) Registered() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.manager != nil
}

// Deadline returns the next time the timer is due.
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// poll fires the timer when due. The check and the fire share one critical section so
// Unregister never observes a half-fired timer.
func (t *Timer) poll(m *Manager, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.manager != m || now.Before(t.deadline) {
		return
	}
	if _, err := m.Fire(t.event.Clone()); err != nil {
		m.logger.Warn().Err(err).Msg("Timer event rejected")
	}

	if !t.persist || t.interval <= 0 {
		t.unregisterLocked()
		return
	}
	t.deadline = t.deadline.Add(t.interval)
	if !t.deadline.After(now) {
		t.deadline = now.Add(t.interval)
	}
}

func (m *Manager) addTimer(t *Timer) {
	m.tmu.Lock()
	m.timers[t] = struct{}{}
	m.tmu.Unlock()
	m.signal()
}

func (m *Manager) removeTimer(t *Timer) {
	m.tmu.Lock()
	delete(m.timers, t)
	m.tmu.Unlock()
}

func (m *Manager) pollTimers(now time.Time) {
	m.tmu.Lock()
	timers := make([]*Timer, 0, len(m.timers))
	for t := range m.timers {
		timers = append(timers, t)
	}
	m.tmu.Unlock()

	for _, t := range timers {
		t.poll(m, now)
	}
}

func (m *Manager) nextDeadline() (time.Time, bool) {
	m.tmu.Lock()
	timers := make([]*Timer, 0, len(m.timers))
	for t := range m.timers {
		timers = append(timers, t)
	}
	m.tmu.Unlock()

	var next time.Time
	for _, t := range timers {
		d := t.Deadline()
		if next.IsZero() || d.Before(next) {
			next = d
		}
	}
	return next, !next.IsZero()
}

// TimerCount returns the number of armed timers.
func (m *Manager) TimerCount() int {
	m.tmu.Lock()
	defer m.tmu.Unlock()
	return len(m.timers)
}
