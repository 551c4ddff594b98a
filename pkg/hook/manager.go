// pkg/hook/manager.go
// Package hook provides a lightweight lifecycle extension mechanism.
// Hooks are registered for named phases and either triggered asynchronously or run
// in reverse registration order, the way deferred calls unwind.
package hook

import (
	"context"
	"errors"
	"sync"
)

// Phase names used by the bootstrap.
const (
	OnStart    = "onStart"
	OnShutdown = "onShutdown"
)

// HookFunc represents a function that can be triggered by a hook phase.
type HookFunc func(ctx context.Context) error

// Manager stores and manages hooks for different named phases.
type Manager struct {
	mu        sync.RWMutex
	hooks     map[string][]HookFunc
	triggered map[string]bool
}

// NewManager creates and returns a new hook manager.
func NewManager() *Manager {
	return &Manager{
		hooks:     make(map[string][]HookFunc),
		triggered: make(map[string]bool),
	}
}

// Register adds a hook function to a named phase.
func (m *Manager) Register(phase string, fn HookFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[phase] = append(m.hooks[phase], fn)
}

// Trigger calls all hooks registered to a phase asynchronously, ignoring errors.
func (m *Manager) Trigger(ctx context.Context, phase string) {
	m.mu.Lock()
	m.triggered[phase] = true
	hooks := append([]HookFunc(nil), m.hooks[phase]...)
	m.mu.Unlock()

	for _, fn := range hooks {
		go func(fn HookFunc) { _ = fn(ctx) }(fn)
	}
}

// Run calls the hooks of a phase one by one, last registered first, and joins
// their errors. Every hook runs even if an earlier one fails.
func (m *Manager) Run(ctx context.Context, phase string) error {
	m.mu.Lock()
	m.triggered[phase] = true
	hooks := append([]HookFunc(nil), m.hooks[phase]...)
	m.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsTriggered checks if a specific phase has been triggered.
func (m *Manager) IsTriggered(phase string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.triggered[phase]
}
