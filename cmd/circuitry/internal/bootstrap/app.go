// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package bootstrap assembles a dispatch manager and its built-in components from
// configuration and runs them until the context is cancelled.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vulntor/circuitry/pkg/appctx"
	"github.com/vulntor/circuitry/pkg/bridge"
	"github.com/vulntor/circuitry/pkg/config"
	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/debugger"
	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/hook"
	"github.com/vulntor/circuitry/pkg/metrics"
	"github.com/vulntor/circuitry/pkg/paths"
	"github.com/vulntor/circuitry/pkg/watch"
	"github.com/vulntor/circuitry/pkg/worker"
)

// ShutdownTimeout bounds the time spent running shutdown hooks.
const ShutdownTimeout = 10 * time.Second

// ErrorCodeAlreadyRunning tags ErrAlreadyRunning for the CLI.
const ErrorCodeAlreadyRunning = "ALREADY_RUNNING"

// ErrAlreadyRunning is returned when another instance holds the lock file.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Deps carries the collaborators of an App.
type Deps struct {
	Config *config.Manager
	Logger zerolog.Logger
	// Trace receives debugger output. Defaults to os.Stderr.
	Trace io.Writer
}

// App is a configured runtime.
type App struct {
	cfg     config.Config
	cfgMgr  *config.Manager
	logger  zerolog.Logger
	trace   io.Writer
	hooks   *hook.Manager
	metrics *metrics.Collector

	manager *core.Manager
	pool    *worker.Pool
	process *worker.Process
	builtin *core.Component

	mu       sync.Mutex
	bridges  []*bridge.Bridge
	listener bridge.Listener
	ready    chan struct{}
}

// New builds an App from the current configuration. Nothing runs until Run.
func New(deps Deps) (*App, error) {
	if deps.Config == nil {
		return nil, errors.New("bootstrap: config manager is required")
	}
	if deps.Trace == nil {
		deps.Trace = os.Stderr
	}
	cfg := deps.Config.Get()

	a := &App{
		cfg:     cfg,
		cfgMgr:  deps.Config,
		logger:  deps.Logger,
		trace:   deps.Trace,
		hooks:   hook.NewManager(),
		metrics: metrics.New(true),
		ready:   make(chan struct{}),
	}

	a.manager = core.NewManager(
		core.WithLogger(a.logger),
		core.WithObserver(a.metrics),
		core.WithTickInterval(cfg.Manager.TickInterval),
	)

	poolOpts := []worker.Option{
		worker.WithLogger(a.logger),
		worker.WithQueueSize(cfg.Worker.QueueSize),
		worker.WithTimeout(cfg.Worker.Timeout),
		worker.WithStats(a.metrics),
	}
	a.pool = worker.NewPool(a.manager, cfg.Worker.Concurrency, poolOpts...)
	a.process = worker.NewProcess(a.manager, cfg.Worker.ProcessConcurrency, poolOpts)
	a.builtin = a.newBuiltins()
	return a, nil
}

// Pool returns the thread worker pool.
func (a *App) Pool() *worker.Pool { return a.pool }

// Manager returns the dispatch manager.
func (a *App) Manager() *core.Manager { return a.manager }

// Hooks returns the hook manager. OnShutdown hooks run in reverse order after the
// loop stops.
func (a *App) Hooks() *hook.Manager { return a.hooks }

// Metrics returns the metrics collector.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Ready is closed once every component is started.
func (a *App) Ready() <-chan struct{} { return a.ready }

// BridgeAddr returns the bridge listener address, or "" when not listening.
func (a *App) BridgeAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr()
}

// Run acquires the instance lock, starts every configured component and blocks
// until ctx is cancelled or the dispatch loop fails. A fatal loop error is returned
// as is; a clean shutdown returns nil. Run must be called at most once.
func (a *App) Run(ctx context.Context) (err error) {
	unlock, err := a.lock()
	if err != nil {
		return err
	}
	a.hooks.Register(hook.OnShutdown, func(context.Context) error { return unlock() })

	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if herr := a.hooks.Run(sctx, hook.OnShutdown); herr != nil {
			a.logger.Warn().Err(herr).Msg("Shutdown hooks reported errors")
			if err == nil {
				err = herr
			}
		}
	}()

	// handlers see the runtime's services on their context
	runCtx, cancel := context.WithCancel(appctx.WithDispatcher(appctx.WithConfig(ctx, a.cfgMgr), a.manager))
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if err := a.manager.Register(a.builtin); err != nil {
		return err
	}
	if a.cfg.Debugger.Enabled {
		if err := a.startDebugger(); err != nil {
			return err
		}
	}
	if err := a.startWorkers(gctx); err != nil {
		return err
	}
	a.startTimers()

	g.Go(func() error { return a.manager.Run(gctx) })

	if err := a.startServices(gctx, g); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	close(a.ready)
	a.hooks.Trigger(ctx, hook.OnStart)
	a.logger.Info().Msg("Runtime started")

	err = g.Wait()
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}
	a.logger.Info().Err(err).Msg("Runtime stopped")
	return err
}

func (a *App) startServices(ctx context.Context, g *errgroup.Group) error {
	if a.cfg.Watch.Enabled {
		if err := a.startWatcher(ctx, g); err != nil {
			return err
		}
	}
	if a.cfg.Metrics.Addr != "" {
		a.startMetrics(ctx, g)
	}
	if a.cfg.Bridge.Enabled {
		return a.startBridge(ctx, g)
	}
	return nil
}

func (a *App) lock() (func() error, error) {
	path := a.cfg.Lock.File
	if path == "" {
		path = paths.LockFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, core.WithErrorCode(fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path), ErrorCodeAlreadyRunning)
	}
	a.logger.Debug().Str("lock", path).Msg("Instance lock acquired")
	return fl.Unlock, nil
}

func (a *App) startDebugger() error {
	opts := []debugger.Option{
		debugger.WithWriter(a.trace),
		debugger.IgnoreEvents(a.cfg.Debugger.IgnoreEvents...),
		debugger.IgnoreChannels(a.cfg.Debugger.IgnoreChannels...),
		debugger.WithMaxWidth(a.cfg.Debugger.MaxWidth),
	}
	if a.cfg.Debugger.NoColor {
		opts = append(opts, debugger.NoColor())
	}
	d := debugger.New(opts...)
	if err := a.manager.Register(d.Component); err != nil {
		return err
	}
	a.hooks.Register(hook.OnShutdown, func(context.Context) error {
		d.Unregister()
		return nil
	})
	return nil
}

func (a *App) startWorkers(ctx context.Context) error {
	if err := a.pool.Start(ctx); err != nil {
		return err
	}
	a.hooks.Register(hook.OnShutdown, a.pool.Stop)
	if err := a.process.Start(ctx); err != nil {
		return err
	}
	a.hooks.Register(hook.OnShutdown, a.process.Stop)
	return nil
}

func (a *App) startTimers() {
	for _, tc := range a.cfg.Timers {
		t := core.NewTimer(tc.Interval, event.New(tc.Event, event.WithChannel(tc.Channel)), tc.Persist)
		t.Register(a.manager)
		a.logger.Debug().
			Str("event", tc.Event).
			Str("channel", tc.Channel).
			Dur("interval", tc.Interval).
			Bool("persist", tc.Persist).
			Msg("Timer armed")
	}
}

func (a *App) startWatcher(ctx context.Context, g *errgroup.Group) error {
	path := a.cfgMgr.FilePath()
	if path == "" {
		a.logger.Warn().Msg("Config watching enabled but no config file is loaded")
		return nil
	}
	w, err := watch.New(a.manager, path, a.logger)
	if err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	g.Go(func() error {
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error().Err(err).Msg("Config watcher stopped")
		}
		return nil
	})
	return nil
}

func (a *App) startMetrics(ctx context.Context, g *errgroup.Group) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		a.logger.Info().Str("addr", srv.Addr).Msg("Metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

func (a *App) bridgeOptions() []bridge.Option {
	return []bridge.Option{
		bridge.WithLogger(a.logger),
		bridge.WithBufferSize(a.cfg.Bridge.Buffer),
		bridge.WithHandshakeTimeout(a.cfg.Bridge.HandshakeTimeout),
		bridge.WithStats(a.metrics),
	}
}

func (a *App) startBridge(ctx context.Context, g *errgroup.Group) error {
	bc := a.cfg.Bridge
	switch bc.Mode {
	case "dial":
		conn, err := bridge.Dial(ctx, bc.Transport, bc.Addr, bc.MaxFrame)
		if err != nil {
			return err
		}
		return a.attach(ctx, conn)

	default:
		ln, err := bridge.Listen(bc.Transport, bc.Addr, bc.MaxFrame, a.logger)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.listener = ln
		a.mu.Unlock()
		a.logger.Info().Str("addr", ln.Addr()).Str("transport", bc.Transport).Msg("Bridge listening")

		g.Go(func() error {
			<-ctx.Done()
			return ln.Close()
		})
		g.Go(func() error {
			for {
				conn, err := ln.Accept(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("bridge accept: %w", err)
				}
				if err := a.attach(ctx, conn); err != nil {
					a.logger.Warn().Err(err).Str("remote", conn.RemoteAddr()).Msg("Bridge handshake failed")
				}
			}
		})
		return nil
	}
}

func (a *App) attach(ctx context.Context, conn bridge.Conn) error {
	b := bridge.New(a.manager, conn, a.bridgeOptions()...)
	if err := b.Start(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	a.bridges = append(a.bridges, b)
	a.mu.Unlock()
	a.hooks.Register(hook.OnShutdown, func(context.Context) error { return b.Close() })
	return nil
}
