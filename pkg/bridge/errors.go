// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package bridge

import (
	"errors"
	"fmt"
)

const (
	errorCodeSerialization = "BRIDGE_SERIALIZATION"
	errorCodeIncompatible  = "BRIDGE_INCOMPATIBLE"
)

var (
	// ErrSerialization is matched by errors.Is for events that cannot be encoded.
	ErrSerialization = errors.New("event not serializable")

	// ErrIncompatible is matched by errors.Is for failed handshakes.
	ErrIncompatible = errors.New("incompatible bridge peer")

	// ErrFrameTooLarge is returned by stream transports for oversized frames.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrUnknownTransport is returned by Dial and Listen for unsupported transports.
	ErrUnknownTransport = errors.New("unknown bridge transport")
)

// SerializationError reports an event whose payload could not be encoded.
type SerializationError struct {
	Event string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize event %s: %v", e.Event, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Is matches ErrSerialization.
func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

// Code returns the serialization error code.
func (e *SerializationError) Code() string { return errorCodeSerialization }

// IncompatibleBridgeError reports a handshake that failed validation.
type IncompatibleBridgeError struct {
	Local  string
	Remote string
	Reason string
}

func (e *IncompatibleBridgeError) Error() string {
	return fmt.Sprintf("incompatible bridge peer (local %s, remote %s): %s", e.Local, e.Remote, e.Reason)
}

// Is matches ErrIncompatible.
func (e *IncompatibleBridgeError) Is(target error) bool { return target == ErrIncompatible }

// Code returns the incompatibility error code.
func (e *IncompatibleBridgeError) Code() string { return errorCodeIncompatible }
