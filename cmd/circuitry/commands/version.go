// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/circuitry/cmd/circuitry/internal/format"
	v "github.com/vulntor/circuitry/pkg/version"
)

func newVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := v.Get()
			formatter := format.FromCommand(cmd)
			if formatter.IsJSON() {
				return formatter.PrintJSON(info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s version: %s\n", cliExecutable, info.Version)
			if short {
				return nil
			}
			fmt.Fprintf(out, "Commit: %s\n", info.Commit)
			fmt.Fprintf(out, "Build Date: %s\n", info.BuildDate)
			fmt.Fprintf(out, "Bridge Protocol: %s\n", info.Protocol)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")

	return cmd
}
