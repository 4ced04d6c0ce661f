// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package plugin

import (
	"github.com/metroscript/metroscript/internal/script"
)

// State tracks where a plugin entry sits in its lifecycle.
type State uint8

const (
	// StateDiscovered means the source file was found but not yet imported.
	StateDiscovered State = iota
	// StateLoaded means the module executed and its table is held by a handle.
	StateLoaded
	// StateFailed means the last import attempt raised an error.
	StateFailed
	// StateUnloaded means the handle was released; the entry is about to be dropped.
	StateUnloaded
)

// String returns a lowercase name for logging.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	case StateUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// Source identifies a plugin file eligible for loading.
type Source struct {
	// Name is the file stem and becomes the registry key.
	Name string
	// Path is the absolute path to the source file.
	Path string
}

// Entry records one plugin from discovery through unload. Entries returned
// by the registry are copies; mutating them does not affect registry state.
type Entry struct {
	Name       string
	SourcePath string
	Handle     script.Handle
	State      State
	// Err holds the most recent load failure, nil otherwise.
	Err error
}
