// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vulntor/circuitry/cmd/circuitry/internal/format"
	"github.com/vulntor/circuitry/pkg/appctx"
	"github.com/vulntor/circuitry/pkg/bridge"
	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/event"
)

// sendStats signals every frame written to the peer and every frame dropped.
type sendStats struct {
	sent    chan struct{}
	dropped chan string
}

func (s *sendStats) FrameSent() {
	select {
	case s.sent <- struct{}{}:
	default:
	}
}
func (s *sendStats) FrameReceived() {}
func (s *sendStats) FrameDropped(reason string) {
	select {
	case s.dropped <- reason:
	default:
	}
}

// parseValue reads a command line value as a YAML scalar or flow collection, so
// 42 is an int, true a bool and [a, b] a list.
func parseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

// newSendCommand creates the 'circuitry send' command, which connects to a running
// peer over the bridge, fires one event and disconnects.
func newSendCommand() *cobra.Command {
	var (
		channel string
		kwargs  map[string]string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send EVENT [ARG...]",
		Short: "Fire an event on a running peer through the bridge",
		Example: `  circuitry send ping --bridge.addr 127.0.0.1:7400
  circuitry send exec echo hello --channel process --bridge.addr 127.0.0.1:7400
  circuitry send resize 80 24 --kwarg unit=cols --bridge.transport websocket --bridge.addr host:7400`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			cfgMgr, ok := appctx.Config(cmd.Context())
			if !ok {
				return fail(formatter, "send", errConfigUnavailable)
			}
			bc := cfgMgr.Get().Bridge
			if bc.Addr == "" {
				return fail(formatter, "send", fmt.Errorf("bridge.addr is required"))
			}

			values := make([]any, 0, len(args)-1)
			for _, raw := range args[1:] {
				values = append(values, parseValue(raw))
			}
			kw := make(map[string]any, len(kwargs))
			for k, raw := range kwargs {
				kw[k] = parseValue(raw)
			}
			e := event.New(args[0],
				event.WithChannel(channel),
				event.WithArgs(values...),
				event.WithKwargs(kw),
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			m := core.NewManager(core.WithLogger(log.Logger))
			conn, err := bridge.Dial(ctx, bc.Transport, bc.Addr, bc.MaxFrame)
			if err != nil {
				return fail(formatter, "connect bridge", err)
			}
			stats := &sendStats{sent: make(chan struct{}, 1), dropped: make(chan string, 1)}
			b := bridge.New(m, conn,
				bridge.WithLogger(log.Logger),
				bridge.WithHandshakeTimeout(bc.HandshakeTimeout),
				bridge.WithStats(stats),
			)
			if err := b.Start(ctx); err != nil {
				return fail(formatter, "connect bridge", err)
			}
			defer func() { _ = b.Close() }()

			if _, err := m.Fire(e); err != nil {
				return fail(formatter, "send", err)
			}
			if err := m.Flush(ctx); err != nil {
				return fail(formatter, "send", err)
			}

			select {
			case <-stats.sent:
			case reason := <-stats.dropped:
				return fail(formatter, "send", fmt.Errorf("event not sent: %s", reason))
			case <-ctx.Done():
				return fail(formatter, "send", fmt.Errorf("event not delivered: %w", ctx.Err()))
			}

			if formatter.IsJSON() {
				return formatter.PrintJSON(map[string]any{
					"success": true,
					"event":   e.Name(),
					"channel": e.Channel(),
					"id":      e.ID(),
					"peer":    b.RemoteSession(),
				})
			}
			return formatter.PrintSummary(fmt.Sprintf("✓ Sent %s to %s", e, bc.Addr))
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Event channel (empty for global)")
	cmd.Flags().StringToStringVar(&kwargs, "kwarg", nil, "Keyword argument key=value (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Connect and delivery timeout")

	return cmd
}
