// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package bridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultMaxFrameSize bounds a single frame on stream transports.
const DefaultMaxFrameSize = 1 << 20

// Conn is a framed, bidirectional transport. ReadFrame is called from one goroutine;
// WriteFrame may be called concurrently with ReadFrame.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(b []byte) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// StreamConn frames messages on a byte stream with a 4-byte big-endian length prefix.
type StreamConn struct {
	conn     net.Conn
	maxFrame int
	wmu      sync.Mutex
}

// NewStreamConn wraps a stream connection. A non-positive maxFrame uses
// DefaultMaxFrameSize.
func NewStreamConn(conn net.Conn, maxFrame int) *StreamConn {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &StreamConn{conn: conn, maxFrame: maxFrame}
}

func (c *StreamConn) ReadFrame() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(c.conn, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if int64(n) > int64(c.maxFrame) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, c.maxFrame)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *StreamConn) WriteFrame(b []byte) error {
	if len(b) > c.maxFrame {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(b), c.maxFrame)
	}
	msg := make([]byte, 4+len(b))
	binary.BigEndian.PutUint32(msg, uint32(len(b)))
	copy(msg[4:], b)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.conn.Write(msg)
	return err
}

func (c *StreamConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// MaxFrameSize returns the largest frame accepted in either direction.
func (c *StreamConn) MaxFrameSize() int { return c.maxFrame }

func (c *StreamConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *StreamConn) Close() error { return c.conn.Close() }

// WebSocketConn sends one frame per binary WebSocket message.
type WebSocketConn struct {
	conn     *websocket.Conn
	maxFrame int
	wmu      sync.Mutex
}

// NewWebSocketConn wraps an established WebSocket connection.
func NewWebSocketConn(conn *websocket.Conn, maxFrame int) *WebSocketConn {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	conn.SetReadLimit(int64(maxFrame))
	return &WebSocketConn{conn: conn, maxFrame: maxFrame}
}

func (c *WebSocketConn) ReadFrame() ([]byte, error) {
	for {
		kind, payload, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.BinaryMessage || kind == websocket.TextMessage {
			return payload, nil
		}
	}
}

func (c *WebSocketConn) WriteFrame(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (c *WebSocketConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// MaxFrameSize returns the read limit. Peers share the configured limit, so larger
// frames are not sent.
func (c *WebSocketConn) MaxFrameSize() int { return c.maxFrame }

func (c *WebSocketConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *WebSocketConn) Close() error {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}

// frameLimiter is implemented by transports that bound the frame size.
type frameLimiter interface {
	MaxFrameSize() int
}

var (
	_ frameLimiter = (*StreamConn)(nil)
	_ frameLimiter = (*WebSocketConn)(nil)
	_ Conn         = (*StreamConn)(nil)
	_ Conn         = (*WebSocketConn)(nil)
)
