// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package script

// State is the lifecycle state of a Session. A session moves strictly
// forward: Uninitialized to Active to ShutDown. ShutDown is terminal; a
// fresh Session is required to bring the runtime back up.
type State uint8

// Session lifecycle states.
const (
	StateUninitialized State = iota
	StateActive
	StateShutDown
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateShutDown:
		return "shut_down"
	default:
		return "unknown"
	}
}
