// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/vulntor/circuitry/pkg/appctx"
	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/logging"
	"github.com/vulntor/circuitry/pkg/worker"
)

// Built-in event names served by the runtime component.
const (
	EventPing           = "ping"
	EventExec           = "exec"
	EventConfigReloaded = "config_reloaded"
)

// ErrExecNotAllowed is returned for exec events naming a command outside worker.exec.
var ErrExecNotAllowed = errors.New("command not allowed")

func (a *App) newBuiltins() *core.Component {
	c := core.NewComponent("runtime", "")
	c.On(EventPing, func(context.Context, *event.Event) (any, error) {
		return "pong", nil
	}, core.OnChannel(event.Wildcard))
	c.On(EventExec, a.exec, core.OnChannel(worker.ProcessChannel))
	c.On(event.NameConfigChanged, a.reload)
	return c
}

// exec runs args[0] with the remaining args as arguments on the process worker.
func (a *App) exec(_ context.Context, e *event.Event) (any, error) {
	if e.NumArgs() == 0 {
		return nil, fmt.Errorf("%s: missing command", EventExec)
	}
	argv := make([]string, e.NumArgs())
	for i, d := range e.Args() {
		s, err := d.AsString()
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", EventExec, i, err)
		}
		argv[i] = s
	}
	if !slices.Contains(a.cfg.Worker.Exec, argv[0]) {
		return nil, fmt.Errorf("%w: %s", ErrExecNotAllowed, argv[0])
	}
	return a.process.Run(argv[0], argv[1:]...), nil
}

// reload re-reads configuration, applies the log level and announces the new level
// with config_reloaded. Other settings take effect on the next start.
func (a *App) reload(ctx context.Context, e *event.Event) (any, error) {
	pathDatum, _ := e.Kwarg("path")
	path, _ := pathDatum.AsString()
	cfgMgr, ok := appctx.Config(ctx)
	if !ok {
		cfgMgr = a.cfgMgr
	}
	if err := cfgMgr.Reload(); err != nil {
		a.logger.Error().Err(err).Str("path", path).Msg("Config reload failed, keeping previous configuration")
		return nil, err
	}
	level := logging.ParseLevel(cfgMgr.Get().Log.Level)
	zerolog.SetGlobalLevel(level)
	a.logger.Info().Str("path", path).Str("level", level.String()).Msg("Configuration reloaded")

	dispatcher, ok := appctx.Dispatcher(ctx)
	if !ok {
		dispatcher = a.manager
	}
	if _, err := dispatcher.Emit(EventConfigReloaded,
		event.WithChannel(e.Channel()),
		event.WithKwargs(map[string]any{"path": path, "level": level.String()}),
	); err != nil {
		return nil, err
	}
	return true, nil
}
