// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package event

// Wildcard matches any event name or any channel.
const Wildcard = "*"

// Reserved event names fired by the dispatch core and its built-in components.
const (
	NameError          = "error"
	NameRegistered     = "registered"
	NameUnregistered   = "unregistered"
	NameStarted        = "started"
	NameStopped        = "stopped"
	NameValueChanged   = "value_changed"
	NameWorkerDone     = "worker_done"
	NameDisconnected   = "disconnected"
	NameBridgeOverflow = "bridge_overflow"
	NameConfigChanged  = "config_changed"
)

// SuccessName returns the name of the event fired after name resolves successfully.
func SuccessName(name string) string { return name + "_success" }

// FailureName returns the name of the event fired when a handler for name fails.
func FailureName(name string) string { return name + "_failure" }
