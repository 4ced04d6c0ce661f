// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package dispatch

// Result records the outcome of delivering one hook to one plugin.
type Result struct {
	Plugin string
	// Invoked reports whether the plugin defines the hook and it was called.
	Invoked bool
	// Consumed reports a truthy return from the hook.
	Consumed bool
	// Err holds the isolated failure, nil when the hook completed.
	Err error
}

// Results aggregates per-plugin outcomes of one delivery.
type Results []Result

// OK reports whether no invoked hook failed.
func (rs Results) OK() bool {
	for _, r := range rs {
		if r.Err != nil {
			return false
		}
	}
	return true
}

// Failures returns the results that carry an error.
func (rs Results) Failures() Results {
	var out Results
	for _, r := range rs {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Consumers returns the plugin names that reported consuming the delivery.
func (rs Results) Consumers() []string {
	var out []string
	for _, r := range rs {
		if r.Consumed {
			out = append(out, r.Plugin)
		}
	}
	return out
}
