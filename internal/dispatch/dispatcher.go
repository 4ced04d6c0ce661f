// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

// Package dispatch delivers host events to loaded plugins. The Dispatcher
// fans hooks out with per-plugin failure isolation; the Router resolves
// cheat text to the first plugin that claims it.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/metroscript/metroscript/internal/city"
	"github.com/metroscript/metroscript/internal/plugin"
	"github.com/metroscript/metroscript/internal/script"
	"github.com/metroscript/metroscript/pkg/event"
)

var tracer = otel.Tracer("metroscript/dispatch")

// Hook names fixed by the plugin contract.
const (
	HookInitialize    = "initialize"
	HookCityInit      = "on_city_init"
	HookCityShutdown  = "on_city_shutdown"
	HookHandleMessage = "handle_message"
	HookHandleCheat   = "handle_cheat"
)

// Dispatcher fans host events out to every loaded plugin. One plugin's
// failure is caught, logged, and counted, and never blocks delivery to the
// rest.
type Dispatcher struct {
	session  *script.Session
	registry *plugin.Registry
	facade   *city.Facade // optional, can be nil
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithFacade lets city lifecycle events invalidate the facade's stats cache
// before plugins observe them.
func WithFacade(f *city.Facade) DispatcherOption {
	return func(d *Dispatcher) {
		d.facade = f
	}
}

// NewDispatcher creates a dispatcher over the given session and registry.
func NewDispatcher(session *script.Session, registry *plugin.Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if session == nil {
		return nil, oops.In("dispatch").Errorf("nil session")
	}
	if registry == nil {
		return nil, oops.In("dispatch").Errorf("nil registry")
	}
	d := &Dispatcher{
		session:  session,
		registry: registry,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// CallOnAll invokes the zero-argument hook on every loaded plugin that
// defines it. Plugins without the hook are skipped, not failed. Returns true
// iff no invoked hook raised an error.
func (d *Dispatcher) CallOnAll(ctx context.Context, hook string) bool {
	return d.fanOut(ctx, hook).OK()
}

// CallOnAllDetailed is CallOnAll with per-plugin outcomes.
func (d *Dispatcher) CallOnAllDetailed(ctx context.Context, hook string) Results {
	return d.fanOut(ctx, hook)
}

// CallOne invokes the hook on the named plugin only. Returns false when the
// plugin is unknown or not loaded, when it does not define the hook, or when
// the hook fails. Failures are logged, never propagated.
func (d *Dispatcher) CallOne(ctx context.Context, name, hook string) bool {
	e, ok := d.registry.Lookup(name)
	if !ok || e.State != plugin.StateLoaded {
		slog.DebugContext(ctx, "call target not loaded", "plugin", name, "hook", hook)
		return false
	}
	invoked, _, err := d.callHook(ctx, e, hook)
	return invoked && err == nil
}

// DispatchEvent maps an event to its fixed hook and fans it out. Generic
// messages are a broadcast: a truthy return is recorded as consumed but
// never stops delivery to the remaining plugins. Returns true iff no invoked
// handler failed.
func (d *Dispatcher) DispatchEvent(ctx context.Context, ev event.Event) bool {
	ctx, span := tracer.Start(ctx, "dispatch.event",
		trace.WithAttributes(attribute.String("event.kind", ev.Kind().String())),
	)
	defer span.End()

	switch ev := ev.(type) {
	case event.Message:
		tbl, err := d.messageTable(ev)
		if err != nil {
			slog.WarnContext(ctx, "failed to build message event", "error", err)
			return false
		}
		results := d.fanOut(ctx, HookHandleMessage, tbl)
		for _, name := range results.Consumers() {
			slog.DebugContext(ctx, "message consumed",
				"plugin", name,
				"type", fmt.Sprintf("%#x", ev.Type),
			)
		}
		return results.OK()
	case event.CityInit:
		if d.facade != nil {
			d.facade.InvalidateCache()
		}
		return d.fanOut(ctx, HookCityInit).OK()
	case event.CityShutdown:
		return d.fanOut(ctx, HookCityShutdown).OK()
	default:
		slog.WarnContext(ctx, "no hook for event kind", "kind", ev.Kind().String())
		return false
	}
}

// fanOut delivers one hook to every loaded plugin in registry order.
func (d *Dispatcher) fanOut(ctx context.Context, hook string, args ...lua.LValue) Results {
	ctx, span := tracer.Start(ctx, "dispatch.fan_out",
		trace.WithAttributes(attribute.String("dispatch.hook", hook)),
	)
	defer span.End()

	loaded := d.registry.Loaded()
	results := make(Results, 0, len(loaded))
	failures := 0
	for _, e := range loaded {
		invoked, truthy, err := d.callHook(ctx, e, hook, args...)
		results = append(results, Result{Plugin: e.Name, Invoked: invoked, Consumed: truthy, Err: err})
		if err != nil {
			failures++
		}
	}
	span.SetAttributes(
		attribute.Int("dispatch.plugins", len(loaded)),
		attribute.Int("dispatch.failures", failures),
	)
	return results
}

// callHook invokes one hook on one loaded entry. invoked reports whether the
// plugin defines the hook; truthy reports a truthy return value. An error
// from the hook is logged here and returned for aggregation, never
// propagated as a dispatch failure.
func (d *Dispatcher) callHook(ctx context.Context, e plugin.Entry, hook string, args ...lua.LValue) (invoked, truthy bool, err error) {
	has, err := d.session.HasFunction(e.Handle, hook)
	if err != nil {
		return false, false, oops.In("dispatch").
			Code("DISPATCH_FAILED").
			With("plugin", e.Name).
			With("hook", hook).
			Wrap(err)
	}
	if !has {
		return false, false, nil
	}

	d.session.SetCurrentPlugin(e.Name)
	defer d.session.SetCurrentPlugin("")

	start := time.Now()
	ret, callErr := d.session.Call(ctx, e.Handle, hook, args...)
	RecordHookDuration(hook, time.Since(start))

	if callErr != nil {
		slog.WarnContext(ctx, "plugin hook failed",
			"plugin", e.Name,
			"hook", hook,
			"error", callErr,
		)
		RecordHookInvocation(hook, StatusError)
		return true, false, oops.In("dispatch").
			Code("DISPATCH_FAILED").
			With("plugin", e.Name).
			With("hook", hook).
			Wrap(callErr)
	}
	RecordHookInvocation(hook, StatusSuccess)
	return true, lua.LVAsBool(ret), nil
}

// messageTable builds the {type, data1, data2, data3} table handed to
// handle_message.
func (d *Dispatcher) messageTable(m event.Message) (*lua.LTable, error) {
	t, err := d.session.NewTable()
	if err != nil {
		return nil, err
	}
	d.session.SetField(t, "type", lua.LNumber(m.Type))
	d.session.SetField(t, "data1", lua.LNumber(m.Data1))
	d.session.SetField(t, "data2", lua.LNumber(m.Data2))
	d.session.SetField(t, "data3", lua.LNumber(m.Data3))
	return t, nil
}
