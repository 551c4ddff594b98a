// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package core

import (
	"errors"
	"fmt"
)

const (
	errorCodeInvalidEvent      = "EVENT_INVALID"
	errorCodeAlreadyRegistered = "COMPONENT_ALREADY_REGISTERED"
	errorCodeNotRegistered     = "COMPONENT_NOT_REGISTERED"
	errorCodeHandlerFailed     = "HANDLER_FAILED"
	errorCodeFatal             = "LOOP_FATAL"
	errorCodeRunning           = "LOOP_RUNNING"
)

var (
	// ErrInvalidEvent indicates a malformed fire request (nil event or empty name).
	ErrInvalidEvent = errors.New("invalid event")

	// ErrAlreadyRegistered indicates a component bound to a different manager.
	ErrAlreadyRegistered = errors.New("component registered with another manager")

	// ErrNotRegistered indicates a component that is not bound to any manager.
	ErrNotRegistered = errors.New("component not registered")

	// ErrLoopRunning indicates a second Run or Start on a manager that is already looping.
	ErrLoopRunning = errors.New("manager loop already running")

	// ErrHandlerPanic is matched by errors.Is for handlers that panicked.
	ErrHandlerPanic = errors.New("handler panicked")
)

type errorCoder interface {
	error
	Code() string
}

type withCodeError struct {
	error
	code string
}

func (e *withCodeError) Code() string {
	return e.code
}

func (e *withCodeError) Unwrap() error {
	return e.error
}

// WithErrorCode annotates err with a dispatch error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &withCodeError{error: err, code: code}
}

// ErrorCode extracts the error code from err, or returns an empty string.
func ErrorCode(err error) string {
	var coder errorCoder
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return ""
}

func newInvalidEventError(reason string) error {
	return WithErrorCode(fmt.Errorf("%w: %s", ErrInvalidEvent, reason), errorCodeInvalidEvent)
}

// HandlerError wraps a failure raised by a handler with the identity of the handler
// and the event it was processing.
type HandlerError struct {
	Handler string
	Event   string
	Channel string
	Err     error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed on event %s: %v", e.Handler, e.Event, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Code returns the handler failure error code.
func (e *HandlerError) Code() string {
	return errorCodeHandlerFailed
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// FatalError is returned by the loop when a handler for an error event fails. It is
// the only handler failure that escapes to the loop's caller.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return "fatal failure in error handler: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// Code returns the fatal loop error code.
func (e *FatalError) Code() string {
	return errorCodeFatal
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
