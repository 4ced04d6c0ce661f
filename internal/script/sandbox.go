// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package script

import (
	"path/filepath"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// safeLibrary is a Lua library that is safe to load into the shared state.
type safeLibrary struct {
	name string
	fn   lua.LGFunction
}

// safeLibraries lists the libraries opened into the runtime.
// Safe: package (needed for require of the bootstrap), base, table, string, math.
// Blocked: os, io, debug, channel, coroutine.
func safeLibraries() []safeLibrary {
	return []safeLibrary{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// unsafeBaseFunctions lists base library functions removed after opening.
// They allow arbitrary filesystem access or code loading outside the plugin
// directory, which would defeat the sandbox.
var unsafeBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load"}

// newSandboxedState creates the shared Lua state with only safe libraries,
// with module resolution confined to pluginDir. Plugins reach helper modules
// through require against that single path; native loaders are disabled.
func newSandboxedState(pluginDir string) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	for _, lib := range safeLibraries() {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.
				In("script").
				Code("RUNTIME_INIT_FAILED").
				With("library", lib.name).
				Wrapf(err, "open library")
		}
	}

	for _, fn := range unsafeBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	pkg := L.GetGlobal("package")
	L.SetField(pkg, "path", lua.LString(filepath.Join(pluginDir, "?.lua")))
	L.SetField(pkg, "cpath", lua.LString(""))

	return L, nil
}
