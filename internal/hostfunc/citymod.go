// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package hostfunc

import (
	lua "github.com/yuin/gopher-lua"
)

// cityLoader builds the city module. Reads return plain values; writes
// return (true, nil) on success or (nil, message) on failure so plugins can
// branch without pcall.
func (f *Functions) cityLoader() lua.LGFunction {
	return func(L *lua.LState) int {
		mod := L.NewTable()

		L.SetField(mod, "is_valid", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LBool(f.facade.IsValid()))
			return 1
		}))

		L.SetField(mod, "name", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LString(f.facade.Name()))
			return 1
		}))

		L.SetField(mod, "population", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LNumber(f.facade.Population()))
			return 1
		}))

		L.SetField(mod, "money", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LNumber(f.facade.Money()))
			return 1
		}))

		L.SetField(mod, "set_money", L.NewFunction(func(L *lua.LState) int {
			amount := int64(L.CheckNumber(1))
			if err := f.facade.SetMoney(amount); err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(sanitizeError(f.current(), "set_money", err)))
				return 2
			}
			L.Push(lua.LTrue)
			L.Push(lua.LNil)
			return 2
		}))

		L.SetField(mod, "add_money", L.NewFunction(func(L *lua.LState) int {
			delta := int64(L.CheckNumber(1))
			if err := f.facade.AddMoney(delta); err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(sanitizeError(f.current(), "add_money", err)))
				return 2
			}
			L.Push(lua.LTrue)
			L.Push(lua.LNil)
			return 2
		}))

		L.SetField(mod, "mayor_mode", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LBool(f.facade.MayorMode()))
			return 1
		}))

		L.SetField(mod, "set_mayor_mode", L.NewFunction(func(L *lua.LState) int {
			enabled := L.CheckBool(1)
			if err := f.facade.SetMayorMode(enabled); err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(sanitizeError(f.current(), "set_mayor_mode", err)))
				return 2
			}
			L.Push(lua.LTrue)
			L.Push(lua.LNil)
			return 2
		}))

		L.SetField(mod, "date", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LNumber(f.facade.Date()))
			return 1
		}))

		L.SetField(mod, "time", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LNumber(f.facade.Time()))
			return 1
		}))

		L.SetField(mod, "stats", L.NewFunction(func(L *lua.LState) int {
			stats := f.facade.Stats()
			t := L.NewTable()
			L.SetField(t, "residential_population", lua.LNumber(stats.ResidentialPopulation))
			L.SetField(t, "commercial_population", lua.LNumber(stats.CommercialPopulation))
			L.SetField(t, "industrial_population", lua.LNumber(stats.IndustrialPopulation))
			L.SetField(t, "total_jobs", lua.LNumber(stats.TotalJobs))
			L.SetField(t, "power_produced", lua.LNumber(stats.PowerProduced))
			L.SetField(t, "power_consumed", lua.LNumber(stats.PowerConsumed))
			L.SetField(t, "water_produced", lua.LNumber(stats.WaterProduced))
			L.SetField(t, "water_consumed", lua.LNumber(stats.WaterConsumed))
			L.Push(t)
			return 1
		}))

		L.Push(mod)
		return 1
	}
}
