// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

// Package hostfunc provides host modules to Lua plugins.
//
// Two modules are preloaded into the runtime session: "city", the facade
// over live game state, and "log", the bridge into the host's structured
// logger. Plugins reach them with require.
package hostfunc

import (
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/metroscript/metroscript/internal/city"
	"github.com/metroscript/metroscript/internal/script"
)

// Functions provides host modules to Lua plugins.
type Functions struct {
	facade *city.Facade
	// current names the plugin the host is calling into, for log
	// attribution. Wired to Session.CurrentPlugin.
	current func() string
}

// New creates host functions over the given facade. current may be nil, in
// which case log records carry no plugin attribution.
func New(facade *city.Facade, current func() string) *Functions {
	if current == nil {
		current = func() string { return "" }
	}
	return &Functions{
		facade:  facade,
		current: current,
	}
}

// Register preloads the city and log modules into the session. Must be
// called before plugins load.
func (f *Functions) Register(s *script.Session) {
	s.RegisterModule("city", f.cityLoader())
	s.RegisterModule("log", f.logLoader())
}

// logLoader builds the log module: log.debug/info/warn/error(message).
func (f *Functions) logLoader() lua.LGFunction {
	return func(L *lua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "debug", L.NewFunction(f.logFn(slog.LevelDebug)))
		L.SetField(mod, "info", L.NewFunction(f.logFn(slog.LevelInfo)))
		L.SetField(mod, "warn", L.NewFunction(f.logFn(slog.LevelWarn)))
		L.SetField(mod, "error", L.NewFunction(f.logFn(slog.LevelError)))
		L.Push(mod)
		return 1
	}
}

func (f *Functions) logFn(level slog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		message := L.CheckString(1)

		logger := slog.Default().With("source", "lua")
		if plugin := f.current(); plugin != "" {
			logger = logger.With("plugin", plugin)
		}
		logger.Log(L.Context(), level, message)
		return 0
	}
}

// sanitizeError converts internal errors to safe messages for plugins. The
// full error is logged for operators with a correlation id; the plugin sees
// only the id, never internal context or stack traces.
func sanitizeError(plugin, operation string, err error) string {
	errorID := ulid.Make().String()
	slog.Error("internal error in city operation",
		"error_id", errorID,
		"plugin", plugin,
		"operation", operation,
		"error", err)
	return fmt.Sprintf("internal error (ref: %s)", errorID)
}
