// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package host

import (
	"hash/fnv"
	"strings"
)

// CheatRegistrar is the host-side sink for plugin cheat registrations. The
// game engine implements it to make plugin cheats typeable in its console.
type CheatRegistrar interface {
	RegisterCheat(id uint32, text string) error
}

// CheatRegistrarFunc adapts a function to a CheatRegistrar.
type CheatRegistrarFunc func(id uint32, text string) error

// RegisterCheat calls f.
func (f CheatRegistrarFunc) RegisterCheat(id uint32, text string) error {
	return f(id, text)
}

// CheatID derives the registration id for a cheat text: FNV-1a over the
// lowercased text. This id space is private to registration plumbing and is
// never compared against native host cheat ids.
func CheatID(text string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(text)))
	return h.Sum32()
}
