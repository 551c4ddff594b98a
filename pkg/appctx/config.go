// Package appctx carries shared application services on a context for CLI commands.
package appctx

import (
	"context"

	"github.com/vulntor/circuitry/pkg/config"
	"github.com/vulntor/circuitry/pkg/core"
)

type key string

const (
	configKey     key = "circuitry.config.manager"
	dispatcherKey key = "circuitry.dispatcher"
)

// WithConfig stores the shared config manager on context.
func WithConfig(ctx context.Context, manager *config.Manager) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey, manager)
}

// Config retrieves the shared config manager from context.
func Config(ctx context.Context) (*config.Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	mgr, ok := ctx.Value(configKey).(*config.Manager)
	return mgr, ok && mgr != nil
}

// WithDispatcher stores the event manager on context.
func WithDispatcher(ctx context.Context, m *core.Manager) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, dispatcherKey, m)
}

// Dispatcher retrieves the event manager from context.
func Dispatcher(ctx context.Context) (*core.Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	m, ok := ctx.Value(dispatcherKey).(*core.Manager)
	return m, ok && m != nil
}
