// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

// Package plugin discovers Lua plugin sources and manages their lifecycle
// against a script session: load, unload, reload, and lookup.
//
// Like the session it drives, the registry assumes the host's single-threaded
// call-in model; it performs no internal locking.
package plugin

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/metroscript/metroscript/internal/script"
	"github.com/metroscript/metroscript/pkg/errutil"
)

const (
	sourceExt    = ".lua"
	shutdownHook = "shutdown"
)

// Registry owns the set of known plugins and their loaded handles.
type Registry struct {
	session  *script.Session
	disabled []glob.Glob
	entries  map[string]*Entry
	order    []string
	lastErr  string
}

// Option configures a Registry.
type Option func(*Registry)

// WithDisabledPatterns excludes plugins whose names match any of the given
// glob patterns. Invalid patterns are logged and ignored.
func WithDisabledPatterns(patterns ...string) Option {
	return func(r *Registry) {
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				slog.Warn("ignoring invalid disabled-plugin pattern", "pattern", p, "error", err)
				continue
			}
			r.disabled = append(r.disabled, g)
		}
	}
}

// New creates a registry bound to the given session.
func New(session *script.Session, opts ...Option) *Registry {
	r := &Registry{
		session: session,
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover lists the plugin sources currently present in the plugin
// directory. A file is eligible when it has the .lua extension and does not
// start with an underscore; underscore-prefixed files are shared modules
// reserved for require. Each call re-reads the directory, so files added or
// removed since the last call are reflected.
func (r *Registry) Discover() ([]Source, error) {
	dir := r.session.PluginDir()
	if dir == "" {
		d, err := script.DefaultPluginDir()
		if err != nil {
			return nil, oops.In("plugin").
				Code("PLUGIN_LOAD_FAILED").
				Wrapf(err, "resolving plugin directory")
		}
		dir = d
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("plugin directory does not exist", "dir", dir)
			return nil, nil
		}
		return nil, oops.In("plugin").
			Code("PLUGIN_LOAD_FAILED").
			With("dir", dir).
			Wrapf(err, "reading plugin directory")
	}

	var sources []Source
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if filepath.Ext(name) != sourceExt {
			continue
		}
		if strings.HasPrefix(name, "_") {
			continue
		}
		stem := strings.TrimSuffix(name, sourceExt)
		if r.isDisabled(stem) {
			slog.Debug("skipping disabled plugin", "plugin", stem)
			continue
		}
		sources = append(sources, Source{Name: stem, Path: filepath.Join(dir, name)})
	}
	return sources, nil
}

func (r *Registry) isDisabled(name string) bool {
	for _, g := range r.disabled {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// LoadAll discovers and loads every eligible plugin. It returns true only
// when discovery succeeded and every plugin loaded; individual failures are
// recorded on their entries and do not stop the remaining loads.
func (r *Registry) LoadAll(ctx context.Context) bool {
	if !r.session.IsActive() {
		r.setError(oops.In("plugin").
			Code("RUNTIME_NOT_ACTIVE").
			New("loading plugins requires an active runtime session"))
		return false
	}

	sources, err := r.Discover()
	if err != nil {
		r.setError(err)
		return false
	}
	slog.Info("discovered plugins", "count", len(sources), "dir", r.session.PluginDir())

	ok := true
	for _, src := range sources {
		if err := r.Load(ctx, src); err != nil {
			ok = false
		}
	}
	return ok
}

// Load imports a single plugin source. Loading an already-loaded plugin is a
// success no-op. On failure the entry remains in the failed state, the
// registry's last-error message is set, and the error is returned.
func (r *Registry) Load(ctx context.Context, src Source) error {
	if !r.session.IsActive() {
		err := oops.In("plugin").
			Code("RUNTIME_NOT_ACTIVE").
			With("plugin", src.Name).
			New("loading a plugin requires an active runtime session")
		r.setError(err)
		return err
	}

	if e, ok := r.entries[src.Name]; ok && e.State == StateLoaded {
		slog.Debug("plugin already loaded", "plugin", src.Name)
		return nil
	}

	e := &Entry{Name: src.Name, SourcePath: src.Path, State: StateDiscovered}
	r.put(e)

	h, err := r.session.LoadChunk(ctx, src.Path)
	if err != nil {
		wrapped := oops.In("plugin").
			Code("PLUGIN_LOAD_FAILED").
			With("plugin", src.Name).
			With("path", src.Path).
			Wrapf(err, "loading plugin %q", src.Name)
		e.State = StateFailed
		e.Err = wrapped
		r.setError(wrapped)
		RecordLoad(StatusFailure)
		return wrapped
	}

	e.Handle = h
	e.State = StateLoaded
	e.Err = nil
	r.updateLoadedGauge()
	RecordLoad(StatusSuccess)
	r.logLoaded(e)
	return nil
}

// logLoaded reports a successful load along with whatever metadata the
// plugin table declares. A version that does not parse as semver is only
// worth a warning; plugins keep working without one.
func (r *Registry) logLoaded(e *Entry) {
	attrs := []any{"plugin", e.Name}
	if v, ok, _ := r.session.StringField(e.Handle, "version"); ok {
		if _, err := semver.NewVersion(v); err != nil {
			slog.Warn("plugin version is not valid semver", "plugin", e.Name, "version", v)
		}
		attrs = append(attrs, "version", v)
	}
	if d, ok, _ := r.session.StringField(e.Handle, "description"); ok {
		attrs = append(attrs, "description", d)
	}
	slog.Info("plugin loaded", attrs...)
}

// Unload removes a plugin. For a loaded plugin the optional shutdown hook is
// invoked first; hook errors are logged and otherwise ignored. Unloading an
// unknown plugin is a no-op.
func (r *Registry) Unload(ctx context.Context, name string) {
	e, ok := r.entries[name]
	if !ok {
		return
	}

	if e.State == StateLoaded && !e.Handle.IsZero() {
		r.callShutdownHook(ctx, e)
		r.session.Release(e.Handle)
		RecordUnload()
	}

	e.State = StateUnloaded
	delete(r.entries, name)
	if i := slices.Index(r.order, name); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.updateLoadedGauge()
	slog.Info("plugin unloaded", "plugin", name)
}

func (r *Registry) callShutdownHook(ctx context.Context, e *Entry) {
	has, err := r.session.HasFunction(e.Handle, shutdownHook)
	if err != nil || !has {
		return
	}
	r.session.SetCurrentPlugin(e.Name)
	defer r.session.SetCurrentPlugin("")
	if _, err := r.session.Call(ctx, e.Handle, shutdownHook); err != nil {
		slog.Warn("plugin shutdown hook failed", "plugin", e.Name, "error", err)
	}
}

// UnloadAll unloads every known plugin in reverse load order, so plugins
// loaded later can still use earlier ones from their shutdown hooks.
func (r *Registry) UnloadAll(ctx context.Context) {
	names := slices.Clone(r.order)
	slices.Reverse(names)
	for _, name := range names {
		r.Unload(ctx, name)
	}
	slog.Info("all plugins unloaded", "count", len(names))
}

// ReloadAll unloads everything, then loads whatever discovery now finds.
// The sequence is not transactional: a plugin that loaded before may fail
// afterwards, and files added or removed on disk are picked up.
func (r *Registry) ReloadAll(ctx context.Context) bool {
	slog.Info("reloading all plugins")
	r.UnloadAll(ctx)
	return r.LoadAll(ctx)
}

// LastError returns the most recent registry error message, or the empty
// string when no error has occurred.
func (r *Registry) LastError() string { return r.lastErr }

// Entries returns a snapshot of every known entry in load order, including
// failed ones.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		if e, ok := r.entries[name]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// Loaded returns snapshots of the currently loaded plugins in load order.
func (r *Registry) Loaded() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		if e, ok := r.entries[name]; ok && e.State == StateLoaded {
			out = append(out, *e)
		}
	}
	return out
}

// Lookup returns a snapshot of the named entry.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (r *Registry) put(e *Entry) {
	if _, ok := r.entries[e.Name]; !ok {
		r.order = append(r.order, e.Name)
	}
	r.entries[e.Name] = e
}

func (r *Registry) setError(err error) {
	r.lastErr = err.Error()
	errutil.LogError(slog.Default(), "plugin registry error", err)
}

func (r *Registry) updateLoadedGauge() {
	n := 0
	for _, e := range r.entries {
		if e.State == StateLoaded {
			n++
		}
	}
	SetPluginsLoaded(n)
}
