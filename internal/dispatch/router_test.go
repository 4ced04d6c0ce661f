// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredCommandsMergesAndLowercases(t *testing.T) {
	_, d, _ := newHost(t, map[string]string{
		"aa.lua": `return { cheats = { Moolah = "grant funds", paycheck = "steady income" } }`,
		"bb.lua": `return { cheats = { swimminginit = "flood the pool" } }`,
		"cc.lua": `return {}`,
	})
	r := NewRouter(d)

	cmds := r.RegisteredCommands(context.Background())
	assert.Equal(t, map[string]string{
		"moolah":       "grant funds",
		"paycheck":     "steady income",
		"swimminginit": "flood the pool",
	}, cmds)
}

func TestRegisteredCommandsFirstWinsOnCollision(t *testing.T) {
	_, d, _ := newHost(t, map[string]string{
		"aa.lua": `return { cheats = { moolah = "original" } }`,
		"bb.lua": `return { cheats = { MOOLAH = "impostor" } }`,
	})
	r := NewRouter(d)

	cmds := r.RegisteredCommands(context.Background())
	assert.Equal(t, "original", cmds["moolah"])
	assert.Len(t, cmds, 1)
}

func TestRegisteredCommandsFreshPerCall(t *testing.T) {
	reg, d, _ := newHost(t, map[string]string{
		"aa.lua": `return { cheats = { moolah = "grant funds" } }`,
	})
	r := NewRouter(d)

	ctx := context.Background()
	require.Len(t, r.RegisteredCommands(ctx), 1)

	reg.Unload(ctx, "aa")
	assert.Empty(t, r.RegisteredCommands(ctx), "unloaded plugins must drop out of the merge")
}

func TestRouteUnregisteredIsNoOp(t *testing.T) {
	_, d, p := newHost(t, map[string]string{
		"aa.lua": `
local probe = require("probe")
return {
  cheats = { moolah = "grant funds" },
  handle_cheat = function(cheat)
    probe.record(cheat.text)
    return true
  end,
}`,
	})
	r := NewRouter(d)

	assert.False(t, r.Route(context.Background(), 0, "notacheat"))
	assert.Empty(t, p.calls, "unregistered text must not invoke any plugin")
}

func TestRouteFirstTruthyShortCircuits(t *testing.T) {
	_, d, p := newHost(t, map[string]string{
		"aa.lua": `
local probe = require("probe")
return {
  cheats = { moolah = "grant funds" },
  handle_cheat = function(cheat)
    probe.record("aa:" .. cheat.text)
    return true
  end,
}`,
		"bb.lua": `
local probe = require("probe")
return {
  handle_cheat = function(cheat)
    probe.record("bb:" .. cheat.text)
    return true
  end,
}`,
	})
	r := NewRouter(d)

	assert.True(t, r.Route(context.Background(), 0x6990, "moolah"))
	assert.Equal(t, []string{"aa:moolah"}, p.calls, "bb must never see a cheat aa claimed")
}

func TestRouteCaseInsensitive(t *testing.T) {
	_, d, p := newHost(t, map[string]string{
		"aa.lua": `
local probe = require("probe")
return {
  cheats = { moolah = "grant funds" },
  handle_cheat = function(cheat)
    probe.record(cheat.text)
    return true
  end,
}`,
	})
	r := NewRouter(d)

	assert.True(t, r.Route(context.Background(), 0, "MoOlAh"))
	assert.Equal(t, []string{"moolah"}, p.calls, "handlers see the lowercased text")
}

func TestRouteDeclinedPassesToNext(t *testing.T) {
	_, d, p := newHost(t, map[string]string{
		"aa.lua": `
local probe = require("probe")
return {
  cheats = { paycheck = "steady income" },
  handle_cheat = function(cheat)
    probe.record("aa")
    return false -- not mine after all
  end,
}`,
		"bb.lua": `
local probe = require("probe")
return {
  handle_cheat = function(cheat)
    probe.record("bb")
    return true
  end,
}`,
	})
	r := NewRouter(d)

	assert.True(t, r.Route(context.Background(), 0, "paycheck"))
	assert.Equal(t, []string{"aa", "bb"}, p.calls)
}

func TestRouteErrorCountsAsDidNotClaim(t *testing.T) {
	_, d, p := newHost(t, map[string]string{
		"aa.lua": `
return {
  cheats = { paycheck = "steady income" },
  handle_cheat = function(cheat)
    error("handler crashed")
  end,
}`,
		"bb.lua": `
local probe = require("probe")
return {
  handle_cheat = function(cheat)
    probe.record("bb")
    return true
  end,
}`,
	})
	r := NewRouter(d)

	assert.True(t, r.Route(context.Background(), 0, "paycheck"))
	assert.Equal(t, []string{"bb"}, p.calls)
}

func TestRouteUnclaimed(t *testing.T) {
	_, d, _ := newHost(t, map[string]string{
		"aa.lua": `
return {
  cheats = { paycheck = "steady income" },
  handle_cheat = function(cheat)
    return false
  end,
}`,
	})
	r := NewRouter(d)

	assert.False(t, r.Route(context.Background(), 0, "paycheck"))
}

func TestRouteHandlerSeesIDAndText(t *testing.T) {
	_, d, p := newHost(t, map[string]string{
		"aa.lua": `
local probe = require("probe")
return {
  cheats = { moolah = "grant funds" },
  handle_cheat = function(cheat)
    probe.record(cheat.text .. ":" .. cheat.id)
    return true
  end,
}`,
	})
	r := NewRouter(d)

	require.True(t, r.Route(context.Background(), 26_000, "moolah"))
	assert.Equal(t, []string{"moolah:26000"}, p.calls)
}
