// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/vulntor/circuitry/pkg/event"
)

// Frame types.
const (
	FrameHello = "hello"
	FrameEvent = "event"
)

// CodecJSON is the only payload codec spoken by this implementation.
const CodecJSON = "json"

// Frame is one message on the wire. Hello frames carry the handshake fields; event
// frames carry an event.
type Frame struct {
	Type string `json:"type"`

	Protocol string `json:"protocol,omitempty"`
	Session  string `json:"session,omitempty"`
	Codec    string `json:"codec,omitempty"`

	Name     string                 `json:"name,omitempty"`
	Channel  string                 `json:"channel,omitempty"`
	Args     []event.Datum          `json:"args,omitempty"`
	Kwargs   map[string]event.Datum `json:"kwargs,omitempty"`
	Injected bool                   `json:"injected,omitempty"`

	// result flags of the original event
	Success bool `json:"success,omitempty"`
	Failure bool `json:"failure,omitempty"`
	Notify  bool `json:"notify,omitempty"`
}

// HelloFrame builds a handshake frame.
func HelloFrame(protocol, session string) Frame {
	return Frame{Type: FrameHello, Protocol: protocol, Session: session, Codec: CodecJSON}
}

// EncodeEvent encodes e as an injected event frame.
func EncodeEvent(e *event.Event) ([]byte, error) {
	if !e.Serializable() {
		return nil, &SerializationError{Event: e.Name(), Err: event.ErrUnserializable}
	}
	f := Frame{
		Type:     FrameEvent,
		Name:     e.Name(),
		Channel:  e.Channel(),
		Args:     e.Args(),
		Kwargs:   e.Kwargs(),
		Injected: true,
		Success:  e.Success(),
		Failure:  e.Failure(),
		Notify:   e.Notify(),
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, &SerializationError{Event: e.Name(), Err: err}
	}
	return b, nil
}

// Encode marshals a frame.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// Decode parses a frame and checks its type.
func Decode(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	switch f.Type {
	case FrameHello, FrameEvent:
	default:
		return Frame{}, fmt.Errorf("decode frame: unknown type %q", f.Type)
	}
	if f.Type == FrameEvent && f.Name == "" {
		return Frame{}, fmt.Errorf("decode frame: event without name")
	}
	return f, nil
}

// Event rebuilds the event carried by an event frame, marked as injected.
func (f Frame) Event() *event.Event {
	args := make([]any, len(f.Args))
	for i, a := range f.Args {
		args[i] = a
	}
	kwargs := make(map[string]any, len(f.Kwargs))
	for k, v := range f.Kwargs {
		kwargs[k] = v
	}
	opts := []event.Option{
		event.WithChannel(f.Channel),
		event.WithArgs(args...),
		event.WithKwargs(kwargs),
		event.WithInjected(),
	}
	if f.Success {
		opts = append(opts, event.WithSuccess())
	}
	if f.Failure {
		opts = append(opts, event.WithFailure())
	}
	if f.Notify {
		opts = append(opts, event.WithNotify())
	}
	return event.New(f.Name, opts...)
}
