// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/circuitry/pkg/event"
)

type lifecycleSpy struct {
	*Component
	registered   []string
	unregistered []string
}

func newLifecycleSpy() *lifecycleSpy {
	s := &lifecycleSpy{Component: NewComponent("spy", "")}
	s.On(event.NameRegistered, func(_ context.Context, e *event.Event) (any, error) {
		name, _ := e.Arg(0).AsString()
		s.registered = append(s.registered, name)
		return nil, nil
	})
	s.On(event.NameUnregistered, func(_ context.Context, e *event.Event) (any, error) {
		name, _ := e.Arg(0).AsString()
		s.unregistered = append(s.unregistered, name)
		return nil, nil
	})
	return s
}

func TestComponent_RegisterTree(t *testing.T) {
	m := NewManager()
	spy := newLifecycleSpy()
	require.NoError(t, spy.Register(m))

	parent := NewComponent("parent", "")
	child := NewComponent("child", "")
	parent.On("x", returns("p"))
	child.On("x", returns("c"))
	require.NoError(t, parent.Add(child))
	assert.False(t, child.Registered())

	require.NoError(t, m.Register(parent))
	assert.True(t, parent.Registered())
	assert.True(t, child.Registered())
	assert.Same(t, parent, child.Parent())
	assert.Same(t, m, child.Manager())

	v, _ := m.Emit("x")
	flushed(t, m)
	assert.Equal(t, []any{"p", "c"}, result(t, v))
	assert.Equal(t, []string{"spy", "parent", "child"}, spy.registered)
}

func TestComponent_RegisterIsIdempotent(t *testing.T) {
	m := NewManager()
	spy := newLifecycleSpy()
	require.NoError(t, spy.Register(m))

	c := NewComponent("c", "")
	c.On("x", returns(1))
	require.NoError(t, m.Register(c))
	require.NoError(t, m.Register(c))
	flushed(t, m)

	assert.Equal(t, []string{"spy", "c"}, spy.registered)
	assert.Len(t, m.Handlers("x", ""), 1)
}

func TestComponent_DoubleUnregister(t *testing.T) {
	m := NewManager()
	spy := newLifecycleSpy()
	require.NoError(t, spy.Register(m))

	c := NewComponent("c", "")
	c.On("x", returns(1))
	require.NoError(t, m.Register(c))
	before := m.HandlerCount()

	c.Unregister()
	c.Unregister()
	m.Unregister(c)
	flushed(t, m)

	assert.False(t, c.Registered())
	assert.Equal(t, before-1, m.HandlerCount())
	assert.Equal(t, []string{"c"}, spy.unregistered)

	v, _ := m.Emit("x")
	flushed(t, m)
	assert.Empty(t, result(t, v))
}

func TestComponent_RegisterWithAnotherManager(t *testing.T) {
	m1, m2 := NewManager(), NewManager()
	c := NewComponent("c", "")
	require.NoError(t, m1.Register(c))

	err := m2.Register(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, "COMPONENT_ALREADY_REGISTERED", ErrorCode(err))
	assert.Same(t, m1, c.Manager())
}

func TestComponent_AddAndRemoveWhileRegistered(t *testing.T) {
	m := NewManager()
	parent := NewComponent("parent", "")
	require.NoError(t, m.Register(parent))

	child := NewComponent("child", "")
	child.On("x", returns("c"))
	require.NoError(t, parent.Add(child))
	assert.True(t, child.Registered())
	assert.Len(t, parent.Children(), 1)

	parent.Remove(child)
	assert.False(t, child.Registered())
	assert.Nil(t, child.Parent())
	assert.Empty(t, parent.Children())
	assert.Empty(t, m.Handlers("x", ""))
}

func TestComponent_HandleAfterRegister(t *testing.T) {
	m := NewManager()
	c := NewComponent("c", "")
	require.NoError(t, m.Register(c))

	c.On("late", returns("ok"), Named("late-handler"))
	assert.Equal(t, []string{"late-handler"}, m.Handlers("late", ""))

	v, _ := m.Emit("late")
	flushed(t, m)
	assert.Equal(t, []any{"ok"}, result(t, v))
}

func TestComponent_MultipleNames(t *testing.T) {
	m := NewManager()
	c := NewComponent("c", "")
	c.On("a", returns("hit"), AlsoOn("b"))
	require.NoError(t, m.Register(c))

	assert.Equal(t, []string{"c.a,b"}, m.Handlers("b", ""))
}

func TestComponent_EmitUsesComponentChannel(t *testing.T) {
	m := NewManager()
	c := NewComponent("svc", "svc")
	c.On("ping", returns("pong"))
	require.NoError(t, m.Register(c))

	v, err := c.Emit("ping")
	require.NoError(t, err)
	flushed(t, m)
	assert.Equal(t, []any{"pong"}, result(t, v))
}

func TestComponent_FireUnregistered(t *testing.T) {
	c := NewComponent("c", "")
	_, err := c.Emit("x")
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Equal(t, "COMPONENT_NOT_REGISTERED", ErrorCode(err))
}

func TestComponent_NilHandlerPanics(t *testing.T) {
	c := NewComponent("c", "")
	assert.Panics(t, func() { c.On("x", nil) })
	assert.Panics(t, func() { c.Handle(HandlerSpec{Fn: returns(1)}) })
}
