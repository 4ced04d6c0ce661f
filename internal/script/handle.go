// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package script

import (
	"sync/atomic"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// handleIDs mints process-unique handle ids so that a handle can never
// alias a value owned by a different session.
var handleIDs atomic.Uint64

// Handle is an opaque reference to a value living inside a session's
// runtime. It is only dereferenceable while the session that minted it is
// active; any use after Stop yields a RUNTIME_NOT_ACTIVE error rather than
// touching freed runtime state. The zero Handle is invalid.
type Handle struct {
	id uint64
}

// IsZero reports whether h is the invalid zero handle.
func (h Handle) IsZero() bool { return h.id == 0 }

// mint stores v in the session arena and returns its handle.
func (s *Session) mint(v lua.LValue) Handle {
	h := Handle{id: handleIDs.Add(1)}
	s.arena[h.id] = v
	return h
}

// deref resolves a handle to its runtime value. It is the single place the
// session-active invariant is enforced for handle users.
func (s *Session) deref(h Handle) (lua.LValue, error) {
	if s.state != StateActive {
		return nil, oops.
			In("script").
			Code("RUNTIME_NOT_ACTIVE").
			With("session_state", s.state.String()).
			New("handle used outside an active session")
	}
	v, ok := s.arena[h.id]
	if !ok {
		return nil, oops.
			In("script").
			Code("RUNTIME_NOT_ACTIVE").
			With("session_state", s.state.String()).
			New("handle does not belong to this session")
	}
	return v, nil
}

// Release drops the arena slot for h. Releasing an unknown or already
// released handle is a no-op.
func (s *Session) Release(h Handle) {
	delete(s.arena, h.id)
}
