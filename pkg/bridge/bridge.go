// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package bridge forwards events between two managers over a framed transport.
// Forwarding is best effort: frames queued when the transport fails are dropped and
// the bridge does not reconnect.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vulntor/circuitry/pkg/core"
	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/version"
)

// Defaults for bridge options.
const (
	DefaultBufferSize       = 256
	DefaultHandshakeTimeout = 5 * time.Second
)

// Stats receives bridge traffic counters.
type Stats interface {
	FrameSent()
	FrameReceived()
	FrameDropped(reason string)
}

type nopStats struct{}

func (nopStats) FrameSent()          {}
func (nopStats) FrameReceived()      {}
func (nopStats) FrameDropped(string) {}

// Drop reasons reported to Stats.
const (
	DropUnserializable = "unserializable"
	DropOverflow       = "overflow"
	DropDisconnected   = "disconnected"
)

// local lifecycle and control events never cross a bridge
var controlEvents = map[string]bool{
	event.NameError:          true,
	event.NameRegistered:     true,
	event.NameUnregistered:   true,
	event.NameStarted:        true,
	event.NameStopped:        true,
	event.NameWorkerDone:     true,
	event.NameDisconnected:   true,
	event.NameBridgeOverflow: true,
	event.NameConfigChanged:  true,
}

// Bridge is a component that forwards every locally originated event to a remote
// manager and fires events received from it as injected events.
type Bridge struct {
	*core.Component

	manager  *core.Manager
	conn     Conn
	logger   zerolog.Logger
	stats    Stats
	protocol string
	session  string
	timeout  time.Duration
	maxFrame int

	out    chan []byte
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	remoteSession string
	started       bool
	closing       bool
	failOnce      sync.Once
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bridge) { b.logger = logger.With().Str("component", "bridge").Logger() }
}

// WithBufferSize bounds the outbound frame buffer.
func WithBufferSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.out = make(chan []byte, n)
		}
	}
}

// WithHandshakeTimeout bounds the wait for the peer's hello frame.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithStats installs traffic counters.
func WithStats(s Stats) Option {
	return func(b *Bridge) {
		if s != nil {
			b.stats = s
		}
	}
}

// WithProtocol overrides the announced protocol version.
func WithProtocol(v string) Option {
	return func(b *Bridge) { b.protocol = v }
}

// New creates a bridge for m over conn. Nothing is sent until Start.
func New(m *core.Manager, conn Conn, opts ...Option) *Bridge {
	b := &Bridge{
		Component: core.NewComponent("bridge", "bridge"),
		manager:   m,
		conn:      conn,
		logger:    zerolog.Nop(),
		stats:     nopStats{},
		protocol:  version.Protocol,
		session:   uuid.NewString(),
		timeout:   DefaultHandshakeTimeout,
		out:       make(chan []byte, DefaultBufferSize),
	}
	if fl, ok := conn.(frameLimiter); ok {
		b.maxFrame = fl.MaxFrameSize()
	}
	for _, opt := range opts {
		opt(b)
	}
	b.On(event.Wildcard, b.forward,
		core.OnChannel(event.Wildcard),
		core.WithPriority(core.PriorityLow),
		core.Named("bridge.forward"),
	)
	return b
}

// Session returns the local session id announced in the handshake.
func (b *Bridge) Session() string { return b.session }

// RemoteSession returns the peer's session id after a successful handshake.
func (b *Bridge) RemoteSession() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remoteSession
}

// Start performs the handshake, registers the bridge with its manager and starts the
// reader and writer goroutines. On handshake failure the connection is closed and
// the manager is left untouched.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.handshake(ctx); err != nil {
		_ = b.conn.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.mu.Lock()
	b.cancel = cancel
	b.started = true
	b.mu.Unlock()

	if err := b.manager.Register(b.Component); err != nil {
		cancel()
		_ = b.conn.Close()
		return err
	}

	b.wg.Add(2)
	go b.writeLoop(runCtx)
	go b.readLoop()

	go func() {
		select {
		case <-ctx.Done():
			_ = b.Close()
		case <-runCtx.Done():
		}
	}()

	b.logger.Info().
		Str("session", b.session).
		Str("remote_session", b.RemoteSession()).
		Str("remote", b.conn.RemoteAddr()).
		Msg("Bridge connected")
	return nil
}

func (b *Bridge) handshake(ctx context.Context) error {
	hello, err := Encode(HelloFrame(b.protocol, b.session))
	if err != nil {
		return err
	}

	// both peers send before reading, so the write must not block the read
	werr := make(chan error, 1)
	go func() { werr <- b.conn.WriteFrame(hello) }()

	deadline := time.Now().Add(b.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = b.conn.SetReadDeadline(deadline)
	raw, err := b.conn.ReadFrame()
	_ = b.conn.SetReadDeadline(time.Time{})
	if err != nil {
		return &IncompatibleBridgeError{Local: b.protocol, Reason: fmt.Sprintf("no hello received: %v", err)}
	}
	if err := <-werr; err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	peer, err := Decode(raw)
	if err != nil || peer.Type != FrameHello {
		return &IncompatibleBridgeError{Local: b.protocol, Reason: "first frame is not a hello"}
	}
	if peer.Codec != CodecJSON {
		return &IncompatibleBridgeError{Local: b.protocol, Remote: peer.Protocol, Reason: "unsupported codec " + peer.Codec}
	}
	ok, err := version.CompatibleProtocols(b.protocol, peer.Protocol)
	if err != nil {
		return &IncompatibleBridgeError{Local: b.protocol, Remote: peer.Protocol, Reason: err.Error()}
	}
	if !ok {
		return &IncompatibleBridgeError{Local: b.protocol, Remote: peer.Protocol, Reason: "protocol major version differs"}
	}

	b.mu.Lock()
	b.remoteSession = peer.Session
	b.mu.Unlock()
	return nil
}

// forward runs on the dispatch loop for every event on every channel.
func (b *Bridge) forward(_ context.Context, e *event.Event) (any, error) {
	if e.Injected() || controlEvents[e.Name()] {
		return nil, nil
	}

	frame, err := b.encode(e)
	if err != nil {
		b.stats.FrameDropped(DropUnserializable)
		b.logger.Warn().Err(err).Str("event", e.Name()).Msg("Dropping unserializable event")
		return nil, nil
	}

	select {
	case b.out <- frame:
	default:
		b.stats.FrameDropped(DropOverflow)
		b.logger.Warn().Str("event", e.Name()).Int("buffer", cap(b.out)).Msg("Bridge buffer full, dropping event")
		_, _ = b.manager.Emit(event.NameBridgeOverflow,
			event.WithKwargs(map[string]any{
				"event":   e.Name(),
				"channel": e.Channel(),
				"buffer":  cap(b.out),
			}),
		)
	}
	return nil, nil
}

// encode builds the wire frame for e. Frames the transport would refuse are reported
// as serialization errors so only that event is lost.
func (b *Bridge) encode(e *event.Event) ([]byte, error) {
	frame, err := EncodeEvent(e)
	if err != nil {
		return nil, err
	}
	if b.maxFrame > 0 && len(frame) > b.maxFrame {
		return nil, &SerializationError{
			Event: e.Name(),
			Err:   fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), b.maxFrame),
		}
	}
	return frame, nil
}

func (b *Bridge) writeLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-b.out:
			if err := b.conn.WriteFrame(frame); err != nil {
				b.fail(err)
				return
			}
			b.stats.FrameSent()
		}
	}
}

func (b *Bridge) readLoop() {
	defer b.wg.Done()
	for {
		raw, err := b.conn.ReadFrame()
		if err != nil {
			b.fail(err)
			return
		}
		f, err := Decode(raw)
		if err != nil {
			b.fail(err)
			return
		}
		if f.Type != FrameEvent {
			b.logger.Debug().Str("type", f.Type).Msg("Ignoring non-event frame")
			continue
		}
		b.stats.FrameReceived()
		if _, err := b.manager.Fire(f.Event()); err != nil {
			b.logger.Warn().Err(err).Str("event", f.Name).Msg("Rejected injected event")
		}
	}
}

// fail tears the bridge down after a transport failure and fires one disconnected
// event. Failures observed after Close are ignored.
func (b *Bridge) fail(err error) {
	b.failOnce.Do(func() {
		b.mu.Lock()
		closing := b.closing
		b.closing = true
		cancel := b.cancel
		b.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		_ = b.conn.Close()
		dropped := b.drain()
		b.Unregister()

		if closing {
			return
		}
		b.logger.Warn().Err(err).Int("dropped", dropped).Msg("Bridge disconnected")
		_, _ = b.manager.Emit(event.NameDisconnected, event.WithKwargs(map[string]any{
			"session": b.RemoteSession(),
			"error":   err.Error(),
			"dropped": dropped,
		}))
	})
}

func (b *Bridge) drain() int {
	n := 0
	for {
		select {
		case <-b.out:
			n++
			b.stats.FrameDropped(DropDisconnected)
		default:
			return n
		}
	}
}

// Close shuts the bridge down without firing disconnected.
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.closing = true
	started := b.started
	b.mu.Unlock()

	if !started {
		return b.conn.Close()
	}
	b.fail(errors.New("bridge closed"))
	b.wg.Wait()
	return nil
}
