// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package core

import (
	"sync"
	"sync/atomic"

	"github.com/vulntor/circuitry/pkg/event"
	"github.com/vulntor/circuitry/pkg/future"
)

var componentSeq atomic.Uint64

// Component groups handler declarations and child components. A component is inert
// until registered with a Manager; registering it registers its children too.
//
// Types that react to events embed *Component and declare their handlers in their
// constructor:
//
//	type Greeter struct{ *core.Component }
//
//	func NewGreeter() *Greeter {
//	    g := &Greeter{Component: core.NewComponent("greeter", "")}
//	    g.On("greet", g.greet, core.WithPriority(10))
//	    return g
//	}
type Component struct {
	id      uint64
	name    string
	channel string

	mu       sync.Mutex
	specs    []HandlerSpec
	children []*Component
	parent   *Component
	manager  *Manager
}

// NewComponent creates a component with a default channel for its handlers.
func NewComponent(name, channel string) *Component {
	return &Component{
		id:      componentSeq.Add(1),
		name:    name,
		channel: channel,
	}
}

// Name returns the component name.
func (c *Component) Name() string { return c.name }

// Channel returns the default channel of the component's handlers.
func (c *Component) Channel() string { return c.channel }

// On declares a handler for a single event name. It panics if fn is nil.
func (c *Component) On(name string, fn HandlerFunc, opts ...HandlerOption) {
	spec := HandlerSpec{Events: []string{name}, Fn: fn}
	for _, opt := range opts {
		opt(&spec)
	}
	c.Handle(spec)
}

// Handle declares a handler from a full spec. If the component is already registered
// the handler becomes live immediately. It panics on a nil Fn or an empty name list.
func (c *Component) Handle(spec HandlerSpec) {
	if spec.Fn == nil {
		panic("core: nil handler func for component " + c.name)
	}
	if len(spec.Events) == 0 {
		panic("core: handler without event names for component " + c.name)
	}
	if spec.Name == "" {
		spec.Name = spec.defaultName(c.name)
	}

	c.mu.Lock()
	c.specs = append(c.specs, spec)
	m := c.manager
	c.mu.Unlock()

	if m != nil {
		m.reg.bindOne(c, spec)
	}
}

// Add attaches a child. When the parent is registered the child is registered with the
// same manager.
func (c *Component) Add(child *Component) error {
	c.mu.Lock()
	child.mu.Lock()
	child.parent = c
	child.mu.Unlock()
	c.children = append(c.children, child)
	m := c.manager
	c.mu.Unlock()

	if m != nil {
		return m.Register(child)
	}
	return nil
}

// Remove detaches a child and unregisters it.
func (c *Component) Remove(child *Component) {
	c.mu.Lock()
	for i, ch := range c.children {
		if ch == child {
			c.children = append(c.children[:i:i], c.children[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	child.mu.Lock()
	if child.parent == c {
		child.parent = nil
	}
	child.mu.Unlock()
	child.Unregister()
}

// Children returns the direct children.
func (c *Component) Children() []*Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Component, len(c.children))
	copy(out, c.children)
	return out
}

// Parent returns the parent component, if any.
func (c *Component) Parent() *Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

// Register binds the component tree to m.
func (c *Component) Register(m *Manager) error {
	return m.Register(c)
}

// Unregister removes the component tree from its manager. Calling it on an
// unregistered component does nothing.
func (c *Component) Unregister() {
	if m := c.Manager(); m != nil {
		m.Unregister(c)
	}
}

// Manager returns the manager the component is registered with, or nil.
func (c *Component) Manager() *Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager
}

// Registered reports whether the component is bound to a manager.
func (c *Component) Registered() bool {
	return c.Manager() != nil
}

// Fire fires e on the component's manager.
func (c *Component) Fire(e *event.Event) (*future.Value, error) {
	m := c.Manager()
	if m == nil {
		return nil, WithErrorCode(ErrNotRegistered, errorCodeNotRegistered)
	}
	return m.Fire(e)
}

// Emit builds an event targeted at the component's channel and fires it. Options may
// override the channel.
func (c *Component) Emit(name string, opts ...event.Option) (*future.Value, error) {
	all := make([]event.Option, 0, len(opts)+1)
	all = append(all, event.WithChannel(c.channel))
	all = append(all, opts...)
	return c.Fire(event.New(name, all...))
}

// tree returns c and all descendants, depth first.
func (c *Component) tree() []*Component {
	out := []*Component{c}
	for _, child := range c.Children() {
		out = append(out, child.tree()...)
	}
	return out
}

// attach binds c to m and returns its declared specs in one critical section so a
// concurrent Handle is either in the snapshot or bound directly.
func (c *Component) attach(m *Manager) []HandlerSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager = m
	out := make([]HandlerSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

func (c *Component) detach() {
	c.mu.Lock()
	c.manager = nil
	c.mu.Unlock()
}
