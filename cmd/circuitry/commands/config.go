// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"github.com/spf13/cobra"

	"github.com/vulntor/circuitry/cmd/circuitry/internal/format"
	"github.com/vulntor/circuitry/pkg/appctx"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after defaults, file, env and flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)
			cfgMgr, ok := appctx.Config(cmd.Context())
			if !ok {
				return fail(formatter, "show config", errConfigUnavailable)
			}

			if formatter.IsJSON() {
				return formatter.PrintJSON(cfgMgr.Get())
			}
			out, err := cfgMgr.Dump()
			if err != nil {
				return fail(formatter, "show config", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}
