// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package commands implements the circuitry CLI.
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vulntor/circuitry/cmd/circuitry/internal/format"
	"github.com/vulntor/circuitry/pkg/appctx"
	"github.com/vulntor/circuitry/pkg/config"
	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/logging"
	"github.com/vulntor/circuitry/pkg/paths"
)

const cliExecutable = "circuitry"

// errConfigUnavailable is returned when a command runs without the root pre-run.
var errConfigUnavailable = errors.New("configuration not loaded")

// reportedError marks an error whose summary was already printed.
type reportedError struct{ error }

func (e *reportedError) Unwrap() error { return e.error }

// Reported reports whether err was already printed by a command.
func Reported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// fail prints a failure summary and returns err marked as reported.
func fail(f format.Formatter, operation string, err error) error {
	_ = f.PrintTotalFailureSummary(operation, err, core.ErrorCode(err))
	return &reportedError{err}
}

// NewCommand constructs the top-level circuitry command, wiring global flags,
// configuration loading and logging.
func NewCommand() *cobra.Command {
	var (
		configFile string
		logFile    io.Closer
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Circuitry is an event bus with components, timers, workers and bridges",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if path == "" {
				path = paths.ConfigFile()
			}

			cfgMgr := config.NewManager()
			if err := cfgMgr.Load(cmd.Flags(), path); err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			closer, err := setupLogging(cmd, cfgMgr.Get().Log)
			if err != nil {
				return err
			}
			logFile = closer

			ctx := appctx.WithConfig(cmd.Context(), cfgMgr)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logFile != nil {
				return logFile.Close()
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().StringP("output", "o", "table", "Output format (table, json)")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress summaries")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newSendCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func setupLogging(cmd *cobra.Command, lc config.LogConfig) (io.Closer, error) {
	var (
		out    io.Writer = cmd.ErrOrStderr()
		closer io.Closer
	)
	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	if lc.Format == "json" {
		logging.SetLogWriter(out)
	} else {
		noColor := lc.File != ""
		if flag := cmd.Flags().Lookup("no-color"); flag != nil && flag.Value.String() == "true" {
			noColor = true
		}
		logging.SetLogWriter(logging.ConsoleWriter(out, noColor))
	}
	return closer, logging.ConfigureGlobalLogging(lc.Level)
}
