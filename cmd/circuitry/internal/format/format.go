// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package format renders command results as colored text or JSON.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// OutputMode defines the output format for CLI commands
type OutputMode string

const (
	// ModeJSON outputs data as JSON
	ModeJSON OutputMode = "json"
	// ModeTable outputs data as aligned text
	ModeTable OutputMode = "table"
)

// Formatter provides consistent output formatting across CLI commands
type Formatter interface {
	PrintJSON(data any) error
	PrintTable(headers []string, rows [][]string) error
	PrintSummary(message string) error
	PrintError(err error) error
	// PrintTotalFailureSummary prints a failed operation with its error code and
	// suggestions for that code.
	PrintTotalFailureSummary(operation string, err error, errorCode string) error
	IsJSON() bool
}

type formatter struct {
	stdout io.Writer
	stderr io.Writer
	mode   OutputMode
	quiet  bool
	color  bool
}

// New creates a new Formatter
func New(stdout, stderr io.Writer, mode OutputMode, quiet, color bool) Formatter {
	return &formatter{
		stdout: stdout,
		stderr: stderr,
		mode:   mode,
		quiet:  quiet,
		color:  color,
	}
}

func (f *formatter) IsJSON() bool { return f.mode == ModeJSON }

func (f *formatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *formatter) PrintTable(headers []string, rows [][]string) error {
	if f.mode == ModeJSON {
		items := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			item := make(map[string]string)
			for i, header := range headers {
				if i < len(row) {
					item[header] = row[i]
				}
			}
			items = append(items, item)
		}
		return f.PrintJSON(items)
	}

	w := tabwriter.NewWriter(f.stdout, 0, 0, 2, ' ', 0)
	headerLine := make([]string, len(headers))
	for i, h := range headers {
		headerLine[i] = strings.ToUpper(h)
		if f.color {
			headerLine[i] = color.New(color.Bold).Sprint(headerLine[i])
		}
	}
	if _, err := fmt.Fprintln(w, strings.Join(headerLine, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (f *formatter) PrintSummary(message string) error {
	if f.quiet {
		return nil
	}
	if f.mode == ModeJSON {
		// stdout stays machine readable
		_, err := fmt.Fprintln(f.stderr, message)
		return err
	}
	if f.color {
		_, err := color.New(color.FgGreen).Fprintln(f.stdout, message)
		return err
	}
	_, err := fmt.Fprintln(f.stdout, message)
	return err
}

func (f *formatter) PrintError(err error) error {
	if err == nil {
		return nil
	}
	if f.mode == ModeJSON {
		return f.PrintJSON(map[string]any{
			"success": false,
			"error":   err.Error(),
		})
	}

	var writeErr error
	if f.color {
		_, writeErr = color.New(color.FgRed).Fprintf(f.stderr, "Error: %v\n", err)
	} else {
		_, writeErr = fmt.Fprintf(f.stderr, "Error: %v\n", err)
	}
	return writeErr
}

func (f *formatter) PrintTotalFailureSummary(operation string, err error, errorCode string) error {
	if f.quiet {
		return nil
	}
	if f.mode == ModeJSON {
		return f.PrintJSON(map[string]any{
			"success":    false,
			"operation":  operation,
			"error":      err.Error(),
			"error_code": errorCode,
		})
	}

	var sb strings.Builder
	msg := fmt.Sprintf("✗ Failed to %s: %v", operation, err)
	if errorCode != "" {
		msg += " [" + errorCode + "]"
	}
	if f.color {
		sb.WriteString(color.RedString("%s\n", msg))
	} else {
		sb.WriteString(msg + "\n")
	}

	if suggestions := GetSuggestions(errorCode); len(suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range suggestions {
			sb.WriteString(fmt.Sprintf("  → %s\n", s))
		}
	}

	_, writeErr := io.WriteString(f.stderr, sb.String())
	return writeErr
}

var suggestions = map[string][]string{
	"ALREADY_RUNNING": {
		"Stop the other instance, or point --lock.file at a different path",
	},
	"BRIDGE_INCOMPATIBLE": {
		"Check both peers with:   circuitry version",
		"Peers must share the protocol major version",
	},
	"BRIDGE_SERIALIZATION": {
		"Only send null, bool, number, string, bytes, list and map arguments",
	},
	"EVENT_INVALID": {
		"Event names must not be empty",
	},
	"LOOP_FATAL": {
		"A handler of the error event failed; run with --debugger.enabled to trace it",
	},
	"LOOP_RUNNING": {
		"The dispatch loop is already running in this process",
	},
}

// GetSuggestions returns the suggestions for an error code.
func GetSuggestions(errorCode string) []string {
	return suggestions[errorCode]
}

// ValidateMode checks if the output mode is valid
func ValidateMode(mode string) error {
	switch OutputMode(mode) {
	case ModeJSON, ModeTable:
		return nil
	default:
		return fmt.Errorf("invalid output mode: %s (must be 'json' or 'table')", mode)
	}
}

// ParseMode converts a string to OutputMode
func ParseMode(mode string) OutputMode {
	switch strings.ToLower(mode) {
	case "json":
		return ModeJSON
	default:
		return ModeTable
	}
}
