// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/circuitry/cmd/circuitry/internal/bootstrap"
	"github.com/vulntor/circuitry/cmd/circuitry/internal/format"
	"github.com/vulntor/circuitry/pkg/appctx"
)

// newRunCommand creates the 'circuitry run' command.
//
// The runtime hosts, depending on configuration:
//   - the dispatch loop with a ping and exec responder
//   - thread and process worker pools
//   - timers declared under "timers"
//   - the event debugger
//   - a config file watcher that reloads on change
//   - a bridge listener or dialer
//   - a Prometheus /metrics endpoint
//
// It runs until SIGINT/SIGTERM and then stops components in reverse start order.
func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the event loop with the configured components",
		Example: `  circuitry run
  circuitry run --bridge.enabled --bridge.addr 127.0.0.1:7400
  circuitry run --debugger.enabled --metrics.addr :9400`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			cfgMgr, ok := appctx.Config(cmd.Context())
			if !ok {
				return fail(formatter, "run", errConfigUnavailable)
			}

			app, err := bootstrap.New(bootstrap.Deps{
				Config: cfgMgr,
				Logger: log.Logger,
				Trace:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return fail(formatter, "run", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Run(ctx); err != nil {
				return fail(formatter, "run", err)
			}
			return formatter.PrintSummary("✓ Stopped cleanly")
		},
	}
}
