// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package worker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/future"
)

// ProcessChannel is the default channel of a Process worker.
const ProcessChannel = "process"

// Process runs external commands on a worker pool.
type Process struct {
	*Pool
	env []string
	dir string
}

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithEnv appends KEY=VALUE pairs to the command environment.
func WithEnv(env ...string) ProcessOption {
	return func(p *Process) { p.env = append(p.env, env...) }
}

// WithDir sets the working directory of commands.
func WithDir(dir string) ProcessOption {
	return func(p *Process) { p.dir = dir }
}

// NewProcess creates a process worker. Pool options apply to the underlying pool.
func NewProcess(m *core.Manager, concurrency int, poolOpts []Option, opts ...ProcessOption) *Process {
	all := append([]Option{WithChannel(ProcessChannel)}, poolOpts...)
	p := &Process{Pool: NewPool(m, concurrency, all...)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes name with args and resolves with its trimmed stdout.
func (p *Process) Run(name string, args ...string) *future.Value {
	return p.Submit(func(ctx context.Context, _ []any) (any, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Dir = p.dir
		if len(p.env) > 0 {
			cmd.Env = append(cmd.Environ(), p.env...)
		}
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return strings.TrimSpace(stdout.String()), nil
	})
}
