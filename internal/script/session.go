// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

// Package script owns the embedded Lua runtime session.
//
// A Session is a process-wide resource: it brings the interpreter up once,
// confines module resolution to the plugin directory, imports the bootstrap
// module every plugin depends on, and hands out Handles to values living
// inside the runtime. Handles are only valid while the session is active;
// the session enforces that structurally rather than by convention.
//
// All methods are driven from the host's single call-in thread. That
// single-thread assumption is a precondition of this package, not an
// incidental property.
package script

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// bootstrapModule is the module required at startup. It lives in the plugin
// directory as _base.lua; the leading underscore keeps discovery from
// treating it as a plugin. Startup fails without it.
const bootstrapModule = "_base"

// setupLoggingFn is the optional bootstrap function wiring script-side
// logging into the host. Its failure degrades gracefully.
const setupLoggingFn = "setup_logging"

// module is a named Lua module preloaded into the state for require.
type module struct {
	name   string
	loader lua.LGFunction
}

// Session owns the lifecycle of the embedded Lua runtime.
type Session struct {
	state       State
	explicitDir string
	pluginDir   string
	modules     []module

	L         *lua.LState
	bootstrap *lua.LTable
	arena     map[uint64]lua.LValue

	currentPlugin string
}

// Option configures a Session during construction.
type Option func(*Session)

// WithPluginDir overrides plugin directory resolution with an explicit path.
func WithPluginDir(dir string) Option {
	return func(s *Session) {
		s.explicitDir = dir
	}
}

// NewSession creates a session in the Uninitialized state.
func NewSession(opts ...Option) *Session {
	s := &Session{
		arena: make(map[uint64]lua.LValue),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultPluginDir resolves the plugin directory from the running
// executable's own location: the executable's parent directory's sibling
// "plugins" (<root>/bin/host -> <root>/plugins).
func DefaultPluginDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", oops.
			In("script").
			Code("RUNTIME_INIT_FAILED").
			Wrapf(err, "resolve executable location")
	}
	return filepath.Join(filepath.Dir(filepath.Dir(exe)), "plugins"), nil
}

// RegisterModule makes a host-provided Lua module available to plugins via
// require(name). Modules registered before Start are preloaded during
// startup; registering on an active session takes effect immediately.
func (s *Session) RegisterModule(name string, loader lua.LGFunction) {
	if s.state == StateActive {
		s.L.PreloadModule(name, loader)
		return
	}
	s.modules = append(s.modules, module{name: name, loader: loader})
}

// Start brings the runtime up. It is idempotent: an already active session
// returns nil with no side effects. Any failure before the bootstrap import
// completes leaves the session Uninitialized so the caller may retry after
// fixing the environment.
func (s *Session) Start(ctx context.Context) error {
	switch s.state {
	case StateActive:
		slog.DebugContext(ctx, "runtime session already active")
		return nil
	case StateShutDown:
		return oops.
			In("script").
			Code("RUNTIME_INIT_FAILED").
			Hint("a shut down session cannot restart; create a fresh session").
			New("session is shut down")
	}

	dir := s.explicitDir
	if dir == "" {
		var err error
		dir, err = DefaultPluginDir()
		if err != nil {
			return err
		}
	}

	L, err := newSandboxedState(dir)
	if err != nil {
		return err
	}

	for _, m := range s.modules {
		L.PreloadModule(m.name, m.loader)
	}

	boot, err := requireBootstrap(L)
	if err != nil {
		L.Close()
		return oops.
			In("script").
			Code("RUNTIME_INIT_FAILED").
			With("plugin_dir", dir).
			With("module", bootstrapModule).
			Hint("the plugin directory must contain _base.lua").
			Wrapf(err, "import bootstrap module")
	}

	s.L = L
	s.bootstrap = boot
	s.pluginDir = dir
	s.state = StateActive
	slog.InfoContext(ctx, "runtime session started", "plugin_dir", dir)

	// Logging bridge is best effort: a broken bridge costs script-side log
	// output, not the session.
	s.bridgeLogging(ctx)
	return nil
}

// requireBootstrap imports the bootstrap module and returns its table.
func requireBootstrap(L *lua.LState) (*lua.LTable, error) {
	requireFn := L.GetGlobal("require")
	if err := L.CallByParam(lua.P{
		Fn:      requireFn,
		NRet:    1,
		Protect: true,
	}, lua.LString(bootstrapModule)); err != nil {
		return nil, err
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, oops.
			In("script").
			With("got", ret.Type().String()).
			New("bootstrap module must return a table")
	}
	return tbl, nil
}

// bridgeLogging invokes the bootstrap's optional setup_logging function.
func (s *Session) bridgeLogging(ctx context.Context) {
	fn := s.L.GetField(s.bootstrap, setupLoggingFn)
	if fn.Type() != lua.LTFunction {
		return
	}
	if err := s.protectedCall(fn, 0); err != nil {
		slog.WarnContext(ctx, "logging bridge setup failed, continuing without it",
			"error", err)
	}
}

// Stop tears the runtime down. It is idempotent: a no-op unless the session
// is Active. Stop invalidates every outstanding handle and transitions the
// session to its terminal ShutDown state.
func (s *Session) Stop() {
	if s.state != StateActive {
		slog.Debug("runtime session stop is a no-op", "state", s.state.String())
		return
	}

	clear(s.arena)
	s.bootstrap = nil
	s.L.Close()
	s.L = nil
	s.state = StateShutDown
	slog.Info("runtime session stopped")
}

// IsActive reports whether the runtime is up. Pure query.
func (s *Session) IsActive() bool { return s.state == StateActive }

// CurrentState returns the session lifecycle state.
func (s *Session) CurrentState() State { return s.state }

// PluginDir returns the resolved plugin directory. Empty until Start
// succeeds.
func (s *Session) PluginDir() string { return s.pluginDir }

// SetCurrentPlugin records which plugin the host is about to call into.
// Callers bracket plugin invocations with it; the log bridge reads it for
// attribution. Meaningful only under the single-threaded call-in model.
func (s *Session) SetCurrentPlugin(name string) { s.currentPlugin = name }

// CurrentPlugin returns the plugin recorded by SetCurrentPlugin.
func (s *Session) CurrentPlugin() string { return s.currentPlugin }

// LoadChunk compiles and runs a plugin source file inside the runtime. The
// chunk must return a table; the returned handle references that table.
func (s *Session) LoadChunk(ctx context.Context, path string) (Handle, error) {
	if s.state != StateActive {
		return Handle{}, oops.
			In("script").
			Code("RUNTIME_NOT_ACTIVE").
			With("path", path).
			New("runtime session is not active")
	}

	code, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Handle{}, oops.
			In("script").
			With("path", path).
			Wrapf(err, "read chunk")
	}

	fn, err := s.L.Load(bytes.NewReader(code), filepath.Base(path))
	if err != nil {
		return Handle{}, oops.
			In("script").
			With("path", path).
			Hint("syntax error in plugin source").
			Wrap(err)
	}

	if err := s.protectedCall(fn, 1); err != nil {
		return Handle{}, oops.
			In("script").
			With("path", path).
			Wrapf(err, "run chunk")
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return Handle{}, oops.
			In("script").
			With("path", path).
			With("got", ret.Type().String()).
			New("plugin chunk must return a table")
	}

	slog.DebugContext(ctx, "chunk loaded", "path", path)
	return s.mint(tbl), nil
}

// HasFunction reports whether the referenced table defines fn as a
// function. Absence is not an error.
func (s *Session) HasFunction(h Handle, fn string) (bool, error) {
	v, err := s.Field(h, fn)
	if err != nil {
		return false, err
	}
	return v.Type() == lua.LTFunction, nil
}

// Field returns the named field of the referenced table. Missing fields
// return lua.LNil.
func (s *Session) Field(h Handle, name string) (lua.LValue, error) {
	v, err := s.deref(h)
	if err != nil {
		return nil, err
	}
	return s.L.GetField(v, name), nil
}

// StringField returns the named field as a string, with present reporting
// whether the field exists and is a string.
func (s *Session) StringField(h Handle, name string) (value string, present bool, err error) {
	v, err := s.Field(h, name)
	if err != nil {
		return "", false, err
	}
	str, ok := v.(lua.LString)
	if !ok {
		return "", false, nil
	}
	return string(str), true, nil
}

// Call invokes the named function field on the referenced table, passing
// args, and returns the first result (lua.LNil when the function returned
// nothing). Errors raised inside the function are returned, never
// propagated as panics.
func (s *Session) Call(_ context.Context, h Handle, fn string, args ...lua.LValue) (lua.LValue, error) {
	v, err := s.deref(h)
	if err != nil {
		return nil, err
	}

	target := s.L.GetField(v, fn)
	if target.Type() != lua.LTFunction {
		return nil, oops.
			In("script").
			With("function", fn).
			New("function is not defined")
	}

	if err := s.protectedCall(target, 1, args...); err != nil {
		return nil, oops.
			In("script").
			With("function", fn).
			Wrap(err)
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)
	return ret, nil
}

// protectedCall runs fn with Protect set and converts the rare gopher-lua
// panic (stack corruption, C boundary misuse) into an error so one broken
// plugin cannot take the host process down.
func (s *Session) protectedCall(fn lua.LValue, nret int, args ...lua.LValue) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.
				In("script").
				Errorf("lua runtime panic: %v", r)
		}
	}()
	//nolint:wrapcheck // callers attach their own context
	return s.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    nret,
		Protect: true,
	}, args...)
}

// NewTable exposes table construction on the shared state for event
// builders. Callers must hold an active session.
func (s *Session) NewTable() (*lua.LTable, error) {
	if s.state != StateActive {
		return nil, oops.
			In("script").
			Code("RUNTIME_NOT_ACTIVE").
			New("runtime session is not active")
	}
	return s.L.NewTable(), nil
}

// SetField sets a field on a table built with NewTable.
func (s *Session) SetField(t *lua.LTable, name string, v lua.LValue) {
	s.L.SetField(t, name, v)
}
