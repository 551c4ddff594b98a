// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package bridge

import (
	"context"
	"encoding/binary"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamConn_RoundTrip(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := NewStreamConn(a, 0), NewStreamConn(b, 0)
	defer ca.Close()
	defer cb.Close()

	go func() { _ = ca.WriteFrame([]byte("hello")) }()
	got, err := cb.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestStreamConn_FrameTooLarge(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := NewStreamConn(a, 4), NewStreamConn(b, 4)
	defer ca.Close()
	defer cb.Close()

	assert.ErrorIs(t, ca.WriteFrame([]byte("too long")), ErrFrameTooLarge)

	go func() {
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], 1000)
		_, _ = a.Write(hdr[:])
	}()
	_, err := cb.ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWebSocketConn_RoundTrip(t *testing.T) {
	accepted := make(chan Conn, 1)
	srv := httptest.NewServer(WebSocketHandler(0, zerolog.Nop(), func(c Conn) { accepted <- c }))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, TransportWebSocket, strings.TrimPrefix(srv.URL, "http://"), 0)
	require.NoError(t, err)
	defer client.Close()

	var server Conn
	select {
	case server = <-accepted:
	case <-ctx.Done():
		t.Fatal("no connection accepted")
	}
	defer server.Close()

	require.NoError(t, client.WriteFrame([]byte(`{"type":"hello"}`)))
	got, err := server.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"hello"}`, string(got))

	require.NoError(t, server.WriteFrame([]byte("back")))
	got, err = client.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "back", string(got))
}

func TestListenAndDial(t *testing.T) {
	for _, transport := range []string{TransportTCP, TransportWebSocket} {
		t.Run(transport, func(t *testing.T) {
			ln, err := Listen(transport, "127.0.0.1:0", 0, zerolog.Nop())
			require.NoError(t, err)
			defer ln.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			type accepted struct {
				conn Conn
				err  error
			}
			ch := make(chan accepted, 1)
			go func() {
				c, err := ln.Accept(ctx)
				ch <- accepted{c, err}
			}()

			client, err := Dial(ctx, transport, ln.Addr(), 0)
			require.NoError(t, err)
			defer client.Close()

			res := <-ch
			require.NoError(t, res.err)
			defer res.conn.Close()

			go func() { _ = client.WriteFrame([]byte("ping")) }()
			got, err := res.conn.ReadFrame()
			require.NoError(t, err)
			assert.Equal(t, "ping", string(got))
		})
	}
}

func TestUnknownTransport(t *testing.T) {
	_, err := Dial(context.Background(), "carrier-pigeon", "x", 0)
	assert.ErrorIs(t, err, ErrUnknownTransport)

	_, err = Listen("carrier-pigeon", "127.0.0.1:0", 0, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownTransport)
}
