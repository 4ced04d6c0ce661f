// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/metroscript/metroscript/internal/city"
	"github.com/metroscript/metroscript/pkg/event"
	"github.com/metroscript/metroscript/pkg/host"
)

const bootstrapModule = `
local log = require("log")
local base = {}
function base.setup_logging()
  log.info("logging bridged")
end
return base
`

const treasuryPlugin = `
local city = require("city")
return {
  name = "treasury",
  version = "1.0.0",
  cheats = {
    moolah = "grant funds",
    swimminginit = "set treasury high",
  },
  initialize = function()
    city.add_money(1000)
  end,
  handle_cheat = function(cheat)
    if cheat.text == "moolah" then
      city.add_money(1000000)
      return true
    end
    if cheat.text == "swimminginit" then
      city.set_money(999999999)
      return true
    end
    return false
  end,
  on_city_init = function()
    city.add_money(2)
  end,
  on_city_shutdown = function()
    city.add_money(3)
  end,
  shutdown = function()
    city.add_money(-100)
  end,
}
`

const observerPlugin = `
local city = require("city")
return {
  name = "observer",
  version = "0.2.0",
  handle_message = function(msg)
    if msg.type == 0x26AD8E02 then
      city.add_money(5)
    end
  end,
  on_city_init = function()
    city.add_money(7)
  end,
  on_city_shutdown = function()
    city.add_money(11)
  end,
}
`

// recordingProvider exposes treasury mutations so plugin activity is
// observable from the outside.
type recordingProvider struct {
	city.Provider
	money int64
}

func (p *recordingProvider) Valid() bool            { return true }
func (p *recordingProvider) Name() string           { return "New Sorrento" }
func (p *recordingProvider) Money() int64           { return p.money }
func (p *recordingProvider) SetMoney(v int64) error { p.money = v; return nil }
func (p *recordingProvider) Deposit(v int64) error  { p.money += v; return nil }
func (p *recordingProvider) Withdraw(v int64) error { p.money -= v; return nil }

type recordingRegistrar struct {
	cheats map[uint32]string
}

func (r *recordingRegistrar) RegisterCheat(id uint32, text string) error {
	r.cheats[id] = text
	return nil
}

type testEnv struct {
	ctx       context.Context
	pluginDir string
	provider  *recordingProvider
	registrar *recordingRegistrar
	director  *host.Director
}

func setupRuntimeEnv(plugins map[string]string) *testEnv {
	dir, err := os.MkdirTemp("", "metroscript-test-*")
	Expect(err).NotTo(HaveOccurred())

	Expect(os.WriteFile(filepath.Join(dir, "_base.lua"), []byte(bootstrapModule), 0o600)).To(Succeed())
	for name, body := range plugins {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600)).To(Succeed())
	}

	env := &testEnv{
		ctx:       context.Background(),
		pluginDir: dir,
		provider:  &recordingProvider{Provider: city.Detached()},
		registrar: &recordingRegistrar{cheats: make(map[uint32]string)},
	}
	env.director = host.New(
		host.WithVersion("integration"),
		host.WithPluginDir(dir),
		host.WithCityProvider(env.provider),
		host.WithCheatRegistrar(env.registrar),
	)
	return env
}

func (env *testEnv) teardown() {
	if env.director != nil {
		env.director.PreAppShutdown(env.ctx)
		env.director.PostAppShutdown(env.ctx)
	}
	Expect(os.RemoveAll(env.pluginDir)).To(Succeed())
}

func cheat(text string) host.Message {
	return host.Message{Message: event.Message{Type: event.MsgCheatIssued}, Text: text}
}

func message(msgType uint32) host.Message {
	return host.Message{Message: event.Message{Type: msgType}}
}

var _ = Describe("Runtime lifecycle", func() {
	var env *testEnv

	AfterEach(func() {
		if env != nil {
			env.teardown()
			env = nil
		}
	})

	Describe("startup", func() {
		It("loads plugins, runs initialize, and registers their cheats", func() {
			env = setupRuntimeEnv(map[string]string{
				"treasury.lua": treasuryPlugin,
				"observer.lua": observerPlugin,
			})

			Expect(env.director.OnStart(env.ctx)).To(Succeed())
			Expect(env.director.PostAppInit(env.ctx)).To(BeTrue())

			Expect(env.director.LoadedPlugins()).To(Equal([]string{"observer", "treasury"}))
			Expect(env.provider.money).To(Equal(int64(1000)), "initialize hook should run once")

			Expect(env.registrar.cheats).To(HaveLen(2))
			Expect(env.registrar.cheats[host.CheatID("moolah")]).To(Equal("moolah"))
			Expect(env.registrar.cheats[host.CheatID("swimminginit")]).To(Equal("swimminginit"))
		})

		It("keeps the runtime up when one plugin is broken", func() {
			env = setupRuntimeEnv(map[string]string{
				"treasury.lua": treasuryPlugin,
				"broken.lua":   "this is not lua(((",
			})

			Expect(env.director.PostAppInit(env.ctx)).To(BeFalse(), "the aggregate reports the failure")
			Expect(env.director.LoadedPlugins()).To(Equal([]string{"treasury"}))
			Expect(env.director.LastError()).NotTo(BeEmpty())

			// The surviving plugin still works end to end.
			Expect(env.director.DoMessage(env.ctx, cheat("moolah"))).To(BeTrue())
			Expect(env.provider.money).To(Equal(int64(1_001_000)))
		})
	})

	Describe("cheat routing", func() {
		BeforeEach(func() {
			env = setupRuntimeEnv(map[string]string{
				"treasury.lua": treasuryPlugin,
				"observer.lua": observerPlugin,
			})
			Expect(env.director.PostAppInit(env.ctx)).To(BeTrue())
		})

		It("routes registered cheats to the claiming plugin, case-insensitively", func() {
			Expect(env.director.DoMessage(env.ctx, cheat("MoOlAh"))).To(BeTrue())
			Expect(env.provider.money).To(Equal(int64(1_001_000)))

			Expect(env.director.DoMessage(env.ctx, cheat("swimminginit"))).To(BeTrue())
			Expect(env.provider.money).To(Equal(int64(999_999_999)))
		})

		It("ignores cheats the plugins never registered", func() {
			before := env.provider.money
			Expect(env.director.DoMessage(env.ctx, cheat("hellomynameis"))).To(BeFalse())
			Expect(env.provider.money).To(Equal(before), "host-owned cheats must not reach plugins")
		})
	})

	Describe("city lifecycle", func() {
		BeforeEach(func() {
			env = setupRuntimeEnv(map[string]string{
				"treasury.lua": treasuryPlugin,
				"observer.lua": observerPlugin,
			})
			Expect(env.director.PostAppInit(env.ctx)).To(BeTrue())
		})

		It("delivers city init and shutdown to every plugin", func() {
			base := env.provider.money

			Expect(env.director.DoMessage(env.ctx, message(event.MsgCityInit))).To(BeTrue())
			Expect(env.provider.money).To(Equal(base+2+7), "both on_city_init hooks ran")

			Expect(env.director.DoMessage(env.ctx, message(event.MsgCityShutdown))).To(BeTrue())
			Expect(env.provider.money).To(Equal(base+2+7+3+11), "both on_city_shutdown hooks ran")
		})

		It("broadcasts generic messages to every handler", func() {
			base := env.provider.money
			Expect(env.director.DoMessage(env.ctx, message(event.MsgQueryExecEnd))).To(BeTrue())
			Expect(env.provider.money).To(Equal(base+5), "only the observer handles query messages")
		})
	})

	Describe("reload", func() {
		It("picks up new plugin files and their cheats on request", func() {
			env = setupRuntimeEnv(map[string]string{"treasury.lua": treasuryPlugin})
			Expect(env.director.PostAppInit(env.ctx)).To(BeTrue())
			Expect(env.director.LoadedPlugins()).To(Equal([]string{"treasury"}))

			late := `return { cheats = { zap = "spark the grid" } }`
			Expect(os.WriteFile(filepath.Join(env.pluginDir, "late.lua"), []byte(late), 0o600)).To(Succeed())

			env.director.RequestReload()
			env.director.DoMessage(env.ctx, message(event.MsgQueryExecStart))

			Expect(env.director.LoadedPlugins()).To(Equal([]string{"late", "treasury"}))
			Expect(env.registrar.cheats[host.CheatID("zap")]).To(Equal("zap"))
		})
	})

	Describe("shutdown", func() {
		It("runs plugin shutdown hooks before the session closes", func() {
			env = setupRuntimeEnv(map[string]string{"treasury.lua": treasuryPlugin})
			Expect(env.director.PostAppInit(env.ctx)).To(BeTrue())
			Expect(env.provider.money).To(Equal(int64(1000)))

			Expect(env.director.PreAppShutdown(env.ctx)).To(BeTrue())
			Expect(env.provider.money).To(Equal(int64(900)), "shutdown hook ran while the session was active")
			Expect(env.director.LoadedPlugins()).To(BeEmpty())

			Expect(env.director.PostAppShutdown(env.ctx)).To(BeTrue())

			// Lifecycle calls after shutdown stay safe no-ops.
			Expect(env.director.PreAppShutdown(env.ctx)).To(BeTrue())
			Expect(env.director.PostAppShutdown(env.ctx)).To(BeTrue())
		})
	})

	Describe("plugin directory watching", func() {
		It("schedules a reload when sources change on disk", func() {
			dir, err := os.MkdirTemp("", "metroscript-watch-*")
			Expect(err).NotTo(HaveOccurred())
			Expect(os.WriteFile(filepath.Join(dir, "_base.lua"), []byte(bootstrapModule), 0o600)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "first.lua"), []byte("return {}\n"), 0o600)).To(Succeed())

			cfgPath := filepath.Join(dir, "metroscript.yaml")
			cfg := "plugins:\n  dir: " + dir + "\n  watch: true\n"
			Expect(os.WriteFile(cfgPath, []byte(cfg), 0o600)).To(Succeed())

			env = &testEnv{
				ctx:       context.Background(),
				pluginDir: dir,
				provider:  &recordingProvider{Provider: city.Detached()},
				registrar: &recordingRegistrar{cheats: make(map[uint32]string)},
			}
			env.director = host.New(
				host.WithConfigFile(cfgPath),
				host.WithCityProvider(env.provider),
				host.WithCheatRegistrar(env.registrar),
			)
			Expect(env.director.PostAppInit(env.ctx)).To(BeTrue())
			Expect(env.director.LoadedPlugins()).To(Equal([]string{"first"}))

			Expect(os.WriteFile(filepath.Join(dir, "second.lua"), []byte("return {}\n"), 0o600)).To(Succeed())

			Eventually(func() []string {
				env.director.DoMessage(env.ctx, message(event.MsgQueryExecStart))
				return env.director.LoadedPlugins()
			}, 10*time.Second, 200*time.Millisecond).Should(Equal([]string{"first", "second"}))
		})
	})
})
