// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"fmt"
	"os"

	"github.com/vulntor/circuitry/cmd/circuitry/commands"
)

// Exit codes:
//   - 0: clean shutdown
//   - 1: any failure, including a fatal dispatch loop error
func main() {
	command := commands.NewCommand()

	if err := command.Execute(); err != nil {
		if !commands.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(commands.ExitCode(err))
	}
}
