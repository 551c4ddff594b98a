// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package core

import (
	"sort"
	"sync"

	"github.com/vulntor/circuitry/pkg/event"
)

// binding is a handler spec made live on a manager.
type binding struct {
	seq       uint64
	component *Component
	spec      HandlerSpec
}

func (b *binding) matchesChannel(channel string) bool {
	explicit := b.spec.Channel
	switch {
	case explicit == event.Wildcard, channel == event.Wildcard:
		return true
	case channel == "":
		return explicit == "" || explicit == b.component.channel
	}
	effective := explicit
	if effective == "" {
		effective = b.component.channel
	}
	return effective == channel
}

// maxCachedBuckets bounds the resolution cache. Event names arriving over a bridge are
// not under local control.
const maxCachedBuckets = 1024

type bucketKey struct {
	name    string
	channel string
}

// registry maps (event name, channel) to ordered handler lists. Lists are computed on
// demand and cached until the next registration change or until the cache is full.
type registry struct {
	mu          sync.Mutex
	seq         uint64
	byComponent map[uint64][]*binding
	cache       map[bucketKey][]*binding
	dirty       bool
}

func newRegistry() *registry {
	return &registry{
		byComponent: make(map[uint64][]*binding),
		cache:       make(map[bucketKey][]*binding),
	}
}

func (r *registry) bindLocked(c *Component, specs []HandlerSpec) {
	bs := r.byComponent[c.id]
	for _, s := range specs {
		r.seq++
		bs = append(bs, &binding{seq: r.seq, component: c, spec: s})
	}
	r.byComponent[c.id] = bs
	r.dirty = true
}

func (r *registry) bindOne(c *Component, spec HandlerSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byComponent[c.id]; !ok {
		// unregistered between Handle's check and here
		return
	}
	r.bindLocked(c, []HandlerSpec{spec})
}

func (r *registry) removeLocked(c *Component) bool {
	if _, ok := r.byComponent[c.id]; !ok {
		return false
	}
	delete(r.byComponent, c.id)
	r.dirty = true
	return true
}

// resolve returns the ordered handler list for an event. The returned slice is never
// mutated afterwards, so dispatch can iterate it without holding the lock.
func (r *registry) resolve(name, channel string) []*binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dirty {
		r.cache = make(map[bucketKey][]*binding)
		r.dirty = false
	}

	key := bucketKey{name: name, channel: channel}
	if list, ok := r.cache[key]; ok {
		return list
	}

	var list []*binding
	for _, bs := range r.byComponent {
		for _, b := range bs {
			if b.spec.answers(name) && b.matchesChannel(channel) {
				list = append(list, b)
			}
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].spec.Priority != list[j].spec.Priority {
			return list[i].spec.Priority > list[j].spec.Priority
		}
		return list[i].seq < list[j].seq
	})

	if len(r.cache) >= maxCachedBuckets {
		r.cache = make(map[bucketKey][]*binding)
	}
	r.cache[key] = list
	return list
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, bs := range r.byComponent {
		n += len(bs)
	}
	return n
}
