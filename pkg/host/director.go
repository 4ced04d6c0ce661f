// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

// Package host adapts the game engine's call-in surface onto the runtime
// core. The Director mirrors the host module lifecycle (OnStart,
// PostAppInit, PreAppShutdown, PostAppShutdown, DoMessage) and keeps engine
// vocabulary out of the inner packages.
package host

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/metroscript/metroscript/internal/city"
	"github.com/metroscript/metroscript/internal/config"
	"github.com/metroscript/metroscript/internal/dispatch"
	"github.com/metroscript/metroscript/internal/hostfunc"
	"github.com/metroscript/metroscript/internal/logging"
	"github.com/metroscript/metroscript/internal/plugin"
	"github.com/metroscript/metroscript/internal/script"
	"github.com/metroscript/metroscript/internal/watch"
	"github.com/metroscript/metroscript/pkg/errutil"
	"github.com/metroscript/metroscript/pkg/event"
)

// Message is the host call-in envelope: the native message words plus the
// cheat text for MsgCheatIssued, resolved by the engine before crossing into
// Go. For cheats, Data1 carries the native cheat id.
type Message struct {
	event.Message
	Text string
}

// Director drives the whole runtime from the host's lifecycle calls. All
// methods are invoked from the host's single call-in thread; the only
// cross-thread traffic is the watcher's reload flag.
type Director struct {
	version   string
	cfgPath   string
	pluginDir string
	provider  city.Provider
	registrar CheatRegistrar
	metrics   prometheus.Registerer

	cfg        *config.Config
	session    *script.Session
	registry   *plugin.Registry
	dispatcher *dispatch.Dispatcher
	router     *dispatch.Router
	facade     *city.Facade
	watcher    *watch.Watcher

	reloadPending atomic.Bool
}

// Option configures a Director.
type Option func(*Director)

// WithVersion stamps log records with the embedding build's version.
func WithVersion(v string) Option {
	return func(d *Director) {
		d.version = v
	}
}

// WithConfigFile points at a metroscript.yaml; a missing file falls back to
// defaults.
func WithConfigFile(path string) Option {
	return func(d *Director) {
		d.cfgPath = path
	}
}

// WithPluginDir overrides the plugin directory. Takes precedence over the
// config file and the executable-relative default.
func WithPluginDir(dir string) Option {
	return func(d *Director) {
		d.pluginDir = dir
	}
}

// WithCityProvider supplies live city state. Without it the facade runs
// detached and plugins see an invalid city.
func WithCityProvider(p city.Provider) Option {
	return func(d *Director) {
		d.provider = p
	}
}

// WithCheatRegistrar connects plugin cheat registrations to the engine's
// cheat console.
func WithCheatRegistrar(r CheatRegistrar) Option {
	return func(d *Director) {
		d.registrar = r
	}
}

// WithMetricsRegisterer registers the runtime's Prometheus collectors with
// the given registry during OnStart.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(d *Director) {
		d.metrics = reg
	}
}

// New creates a Director. Nothing is constructed until OnStart.
func New(opts ...Option) *Director {
	d := &Director{version: "dev"}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnStart builds the runtime core: config, logging, session, host modules,
// registry, dispatcher, router, and facade. Repeated calls are no-ops.
func (d *Director) OnStart(ctx context.Context) error {
	if d.session != nil {
		return nil
	}

	cfg, err := config.LoadIfPresent(d.cfgPath)
	if err != nil {
		return err
	}
	d.cfg = cfg
	logging.SetDefault(d.version, cfg.Logging.Level, cfg.Logging.Format)

	dir := d.pluginDir
	if dir == "" {
		dir = cfg.Plugins.Dir
	}
	var sessOpts []script.Option
	if dir != "" {
		sessOpts = append(sessOpts, script.WithPluginDir(dir))
	}
	d.session = script.NewSession(sessOpts...)

	if d.provider == nil {
		d.provider = city.Detached()
	}
	d.facade = city.New(d.provider)
	hostfunc.New(d.facade, d.session.CurrentPlugin).Register(d.session)

	d.registry = plugin.New(d.session, plugin.WithDisabledPatterns(cfg.Plugins.Disabled...))

	dispatcher, err := dispatch.NewDispatcher(d.session, d.registry, dispatch.WithFacade(d.facade))
	if err != nil {
		return err
	}
	d.dispatcher = dispatcher
	d.router = dispatch.NewRouter(dispatcher)

	if d.metrics != nil {
		plugin.RegisterMetrics(d.metrics)
		dispatch.RegisterMetrics(d.metrics)
	}

	slog.InfoContext(ctx, "runtime core constructed", "version", d.version)
	return nil
}

// PostAppInit brings the runtime up: cheat-manager integration (non-fatal),
// session start (fatal), plugin loading, the initialize hook, cheat
// registration with the host, and the optional directory watcher. Returns
// false when the session cannot start or any plugin failed to load.
func (d *Director) PostAppInit(ctx context.Context) bool {
	if d.session == nil {
		if err := d.OnStart(ctx); err != nil {
			errutil.LogError(slog.Default(), "runtime construction failed", err)
			return false
		}
	}

	if d.registrar == nil {
		slog.DebugContext(ctx, "no cheat registrar configured, plugin cheats stay internal")
	}

	if err := d.session.Start(ctx); err != nil {
		errutil.LogError(slog.Default(), "runtime session failed to start", err)
		return false
	}

	ok := d.registry.LoadAll(ctx)
	d.dispatcher.CallOnAll(ctx, dispatch.HookInitialize)
	d.registerPluginCheats(ctx)

	if d.cfg.Plugins.Watch {
		d.watcher = watch.New(d.session.PluginDir(), d.RequestReload)
		if err := d.watcher.Start(ctx); err != nil {
			slog.WarnContext(ctx, "plugin watcher failed to start", "error", err)
			d.watcher = nil
		}
	}

	if !ok {
		slog.WarnContext(ctx, "runtime started with plugin failures", "last_error", d.registry.LastError())
	}
	return ok
}

// PreAppShutdown unloads plugins while the session is still active so their
// shutdown hooks can run. Always returns true.
func (d *Director) PreAppShutdown(ctx context.Context) bool {
	if d.watcher != nil {
		d.watcher.Stop()
		d.watcher = nil
	}
	if d.registry != nil {
		d.registry.UnloadAll(ctx)
	}
	return true
}

// PostAppShutdown tears the session down for good. Always returns true.
func (d *Director) PostAppShutdown(context.Context) bool {
	if d.session != nil {
		d.session.Stop()
	}
	return true
}

// DoMessage is the host's message pump entry. A watcher-requested reload is
// serviced first, on this call-in thread, before the message is demuxed.
func (d *Director) DoMessage(ctx context.Context, msg Message) bool {
	if d.dispatcher == nil {
		return false
	}
	d.servicePendingReload(ctx)

	switch msg.Type {
	case event.MsgCheatIssued:
		return d.router.Route(ctx, msg.Data1, msg.Text)
	case event.MsgCityInit:
		return d.dispatcher.DispatchEvent(ctx, event.CityInit{})
	case event.MsgCityShutdown:
		return d.dispatcher.DispatchEvent(ctx, event.CityShutdown{})
	default:
		return d.dispatcher.DispatchEvent(ctx, msg.Message)
	}
}

// RequestReload schedules a full plugin reload for the next DoMessage. Safe
// to call from any goroutine; this is the watcher's callback.
func (d *Director) RequestReload() {
	d.reloadPending.Store(true)
}

// LoadedPlugins returns the names of currently loaded plugins in load order.
func (d *Director) LoadedPlugins() []string {
	if d.registry == nil {
		return nil
	}
	entries := d.registry.Loaded()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

// RegisteredCheats returns the current cheat text -> description merge.
func (d *Director) RegisteredCheats(ctx context.Context) map[string]string {
	if d.router == nil {
		return nil
	}
	return d.router.RegisteredCommands(ctx)
}

// LastError returns the registry's most recent error message, or "".
func (d *Director) LastError() string {
	if d.registry == nil {
		return ""
	}
	return d.registry.LastError()
}

func (d *Director) servicePendingReload(ctx context.Context) {
	if !d.reloadPending.CompareAndSwap(true, false) {
		return
	}
	slog.InfoContext(ctx, "servicing plugin reload")
	d.registry.ReloadAll(ctx)
	d.dispatcher.CallOnAll(ctx, dispatch.HookInitialize)
	d.registerPluginCheats(ctx)
}

// registerPluginCheats pushes every merged cheat registration to the host's
// registrar. Registration failures are logged and skipped; a cheat the host
// rejects simply stays unroutable from the console.
func (d *Director) registerPluginCheats(ctx context.Context) {
	if d.registrar == nil {
		return
	}
	cheats := d.router.RegisteredCommands(ctx)
	n := 0
	for text := range cheats {
		if err := d.registrar.RegisterCheat(CheatID(text), text); err != nil {
			slog.WarnContext(ctx, "failed to register cheat with host", "cheat", text, "error", err)
			continue
		}
		n++
	}
	if n > 0 {
		slog.InfoContext(ctx, "registered plugin cheats", "count", n)
	}
}
