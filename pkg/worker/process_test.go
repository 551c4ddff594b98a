// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package worker

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcess(t *testing.T, opts ...ProcessOption) *Process {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	m := startLoop(t)
	p := NewProcess(m, 1, nil, opts...)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.Stop(ctx)
	})
	return p
}

func TestProcess_Stdout(t *testing.T) {
	p := newProcess(t)
	assert.Equal(t, ProcessChannel, p.Channel())

	res, err := p.Run("sh", "-c", "echo hello").Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "hello", res)
}

func TestProcess_StderrOnFailure(t *testing.T) {
	p := newProcess(t)

	_, err := p.Run("sh", "-c", "echo broken >&2; exit 3").Wait(waitCtx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestProcess_EnvAndDir(t *testing.T) {
	dir := t.TempDir()
	p := newProcess(t, WithEnv("CIRCUITRY_TEST=yes"), WithDir(dir))

	res, err := p.Run("sh", "-c", "echo $CIRCUITRY_TEST; pwd").Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Contains(t, res, "yes")
	assert.Contains(t, res, dir)
}
