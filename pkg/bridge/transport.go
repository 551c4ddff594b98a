// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Supported transports.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// WebSocketPath is the HTTP path bridges dial and serve on.
const WebSocketPath = "/bridge"

// Dial connects to a listening bridge peer.
func Dial(ctx context.Context, transport, addr string, maxFrame int) (Conn, error) {
	switch transport {
	case TransportTCP:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return NewStreamConn(conn, maxFrame), nil
	case TransportWebSocket:
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, resp, err := dialer.DialContext(ctx, "ws://"+addr+WebSocketPath, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return NewWebSocketConn(conn, maxFrame), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, transport)
	}
}

// WebSocketHandler upgrades requests and hands each connection to accept.
func WebSocketHandler(maxFrame int, logger zerolog.Logger, accept func(Conn)) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
			return
		}
		accept(NewWebSocketConn(conn, maxFrame))
	})
}

// Listener accepts bridge connections.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}

// Listen opens a listener for the given transport.
func Listen(transport, addr string, maxFrame int, logger zerolog.Logger) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	switch transport {
	case TransportTCP:
		return &tcpListener{ln: ln, maxFrame: maxFrame}, nil
	case TransportWebSocket:
		wl := &wsListener{
			ln:    ln,
			conns: make(chan Conn),
			done:  make(chan struct{}),
		}
		mux := http.NewServeMux()
		mux.Handle(WebSocketPath, WebSocketHandler(maxFrame, logger, wl.deliver))
		wl.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := wl.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Bridge WebSocket server stopped")
			}
		}()
		return wl, nil
	default:
		_ = ln.Close()
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, transport)
	}
}

type tcpListener struct {
	ln       net.Listener
	maxFrame int
}

func (l *tcpListener) Accept(ctx context.Context) (Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.ln.Accept()
		ch <- result{c, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return NewStreamConn(r.conn, l.maxFrame), nil
	case <-ctx.Done():
		_ = l.ln.Close()
		return nil, ctx.Err()
	}
}

func (l *tcpListener) Addr() string { return l.ln.Addr().String() }

func (l *tcpListener) Close() error { return l.ln.Close() }

type wsListener struct {
	ln    net.Listener
	srv   *http.Server
	conns chan Conn
	done  chan struct{}
	once  sync.Once
}

func (l *wsListener) deliver(c Conn) {
	select {
	case l.conns <- c:
	case <-l.done:
		_ = c.Close()
	}
}

func (l *wsListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *wsListener) Addr() string { return l.ln.Addr().String() }

func (l *wsListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err = l.srv.Shutdown(ctx)
	})
	return err
}
