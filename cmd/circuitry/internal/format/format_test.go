// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCommandRespectsFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("output", "table", "")
	cmd.Flags().Bool("quiet", false, "")
	cmd.Flags().Bool("no-color", false, "")

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	require.NoError(t, cmd.Flags().Set("output", "json"))
	require.NoError(t, cmd.Flags().Set("quiet", "true"))
	require.NoError(t, cmd.Flags().Set("no-color", "true"))

	formatter := FromCommand(cmd)
	require.True(t, formatter.IsJSON())

	require.NoError(t, formatter.PrintSummary("should be suppressed"))
	require.Equal(t, "", out.String())
}

func TestPrintTable(t *testing.T) {
	var out bytes.Buffer
	f := New(&out, &bytes.Buffer{}, ModeTable, false, false)
	require.NoError(t, f.PrintTable([]string{"name", "value"}, [][]string{{"a", "1"}, {"bb", "2"}}))
	assert.Equal(t, "NAME  VALUE\na     1\nbb    2\n", out.String())

	out.Reset()
	f = New(&out, &bytes.Buffer{}, ModeJSON, false, false)
	require.NoError(t, f.PrintTable([]string{"name"}, [][]string{{"a"}}))
	var items []map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &items))
	assert.Equal(t, []map[string]string{{"name": "a"}}, items)
}

func TestPrintTotalFailureSummary(t *testing.T) {
	var out, errOut bytes.Buffer
	f := New(&out, &errOut, ModeTable, false, false)

	require.NoError(t, f.PrintTotalFailureSummary("connect bridge", errors.New("protocol mismatch"), "BRIDGE_INCOMPATIBLE"))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "✗ Failed to connect bridge: protocol mismatch [BRIDGE_INCOMPATIBLE]")
	assert.Contains(t, errOut.String(), "circuitry version")

	errOut.Reset()
	require.NoError(t, f.PrintTotalFailureSummary("run", errors.New("boom"), ""))
	assert.Equal(t, "✗ Failed to run: boom\n", errOut.String())
}

func TestPrintTotalFailureSummary_JSON(t *testing.T) {
	var out bytes.Buffer
	f := New(&out, &bytes.Buffer{}, ModeJSON, false, false)
	require.NoError(t, f.PrintTotalFailureSummary("run", errors.New("boom"), "LOOP_FATAL"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "LOOP_FATAL", payload["error_code"])
}

func TestPrintError(t *testing.T) {
	var errOut bytes.Buffer
	f := New(&bytes.Buffer{}, &errOut, ModeTable, false, false)
	require.NoError(t, f.PrintError(nil))
	require.NoError(t, f.PrintError(errors.New("bad")))
	assert.Equal(t, "Error: bad\n", errOut.String())
}

func TestModes(t *testing.T) {
	assert.NoError(t, ValidateMode("json"))
	assert.Error(t, ValidateMode("xml"))
	assert.Equal(t, ModeJSON, ParseMode("JSON"))
	assert.Equal(t, ModeTable, ParseMode("anything"))
	assert.Empty(t, GetSuggestions("UNKNOWN"))
}
