// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package dispatch

import (
	"context"
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// cheatsField is the plugin table field holding the text -> description
// registration map.
const cheatsField = "cheats"

// Router resolves cheat text against plugin registrations and delivers the
// cheat to the first plugin that claims it. This is a deliberate contrast
// with the Dispatcher's broadcast: cheats are commands, and exactly one
// handler should win.
type Router struct {
	d *Dispatcher
}

// NewRouter creates a router that delivers through the given dispatcher.
func NewRouter(d *Dispatcher) *Router {
	return &Router{d: d}
}

// RegisteredCommands merges every loaded plugin's cheats table into a single
// text -> description map, lowercasing the text. The first registration wins
// on collision, with a warning naming both plugins. The merge is computed
// fresh on every call so late-loaded plugins become routable immediately.
func (r *Router) RegisteredCommands(ctx context.Context) map[string]string {
	merged := make(map[string]string)
	owner := make(map[string]string)

	for _, e := range r.d.registry.Loaded() {
		field, err := r.d.session.Field(e.Handle, cheatsField)
		if err != nil {
			slog.WarnContext(ctx, "failed to read plugin cheats", "plugin", e.Name, "error", err)
			continue
		}
		tbl, ok := field.(*lua.LTable)
		if !ok {
			continue
		}
		tbl.ForEach(func(k, v lua.LValue) {
			if k.Type() != lua.LTString {
				slog.WarnContext(ctx, "ignoring non-string cheat key", "plugin", e.Name)
				return
			}
			text := strings.ToLower(lua.LVAsString(k))
			if prev, taken := owner[text]; taken {
				slog.WarnContext(ctx, "cheat already registered, keeping first",
					"cheat", text,
					"registered_by", prev,
					"ignored_from", e.Name,
				)
				return
			}
			owner[text] = e.Name
			merged[text] = lua.LVAsString(v)
		})
	}
	return merged
}

// Route delivers one cheat. Unregistered text is a guaranteed no-op: no
// plugin is invoked and Route returns false. Registered text is offered to
// loaded plugins in registry order via handle_cheat; the first truthy return
// claims it and short-circuits the walk. A failing handler counts as "did
// not claim" and the walk continues.
func (r *Router) Route(ctx context.Context, id uint32, text string) bool {
	ctx, span := tracer.Start(ctx, "dispatch.route",
		trace.WithAttributes(attribute.String("cheat.text", text)),
	)
	defer span.End()

	needle := strings.ToLower(text)
	if _, ok := r.RegisteredCommands(ctx)[needle]; !ok {
		slog.DebugContext(ctx, "cheat not registered", "cheat", needle)
		RecordCheatRoute(StatusUnregistered)
		span.SetAttributes(attribute.Bool("cheat.registered", false))
		return false
	}

	ev, err := r.commandTable(id, needle)
	if err != nil {
		slog.WarnContext(ctx, "failed to build cheat event", "cheat", needle, "error", err)
		RecordCheatRoute(StatusError)
		return false
	}

	for _, e := range r.d.registry.Loaded() {
		invoked, truthy, err := r.d.callHook(ctx, e, HookHandleCheat, ev)
		if err != nil || !invoked {
			continue
		}
		if truthy {
			slog.DebugContext(ctx, "cheat handled", "cheat", needle, "plugin", e.Name)
			RecordCheatRoute(StatusHandled)
			span.SetAttributes(attribute.String("cheat.handled_by", e.Name))
			return true
		}
	}

	slog.DebugContext(ctx, "cheat unclaimed", "cheat", needle)
	RecordCheatRoute(StatusUnclaimed)
	return false
}

// commandTable builds the {id, text} table handed to handle_cheat.
func (r *Router) commandTable(id uint32, text string) (*lua.LTable, error) {
	t, err := r.d.session.NewTable()
	if err != nil {
		return nil, err
	}
	r.d.session.SetField(t, "id", lua.LNumber(id))
	r.d.session.SetField(t, "text", lua.LString(text))
	return t, nil
}
