// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

package city

import (
	"log/slog"

	"github.com/samber/oops"
)

// Facade is the view of city state handed to plugins. Reads pass through to
// the Provider except Stats, which is cached until InvalidateCache: stats
// queries fan out across several simulators on the host side and plugins
// poll them freely, so staleness between city transitions is accepted by
// contract.
type Facade struct {
	provider Provider

	cachedStats Stats
	statsValid  bool
}

// New creates a Facade over the given provider. A nil provider behaves as
// Detached().
func New(provider Provider) *Facade {
	if provider == nil {
		provider = Detached()
	}
	return &Facade{provider: provider}
}

// IsValid reports whether a city is currently loaded behind the facade.
func (f *Facade) IsValid() bool { return f.provider.Valid() }

// Name returns the current city's name, or "" when no city is loaded.
func (f *Facade) Name() string { return f.provider.Name() }

// Population returns the current total city population.
func (f *Facade) Population() uint32 { return f.provider.Population() }

// Money returns the city treasury balance.
func (f *Facade) Money() int64 { return f.provider.Money() }

// SetMoney sets the treasury to an absolute amount.
func (f *Facade) SetMoney(amount int64) error {
	if err := f.provider.SetMoney(amount); err != nil {
		return oops.
			In("city").
			With("amount", amount).
			Wrapf(err, "set money")
	}
	return nil
}

// AddMoney adjusts the treasury by delta. A negative delta is mapped to a
// withdrawal on the provider.
func (f *Facade) AddMoney(delta int64) error {
	var err error
	if delta < 0 {
		err = f.provider.Withdraw(-delta)
	} else {
		err = f.provider.Deposit(delta)
	}
	if err != nil {
		return oops.
			In("city").
			With("delta", delta).
			Wrapf(err, "add money")
	}
	return nil
}

// MayorMode reports whether mayor mode is active.
func (f *Facade) MayorMode() bool { return f.provider.MayorMode() }

// SetMayorMode toggles mayor mode.
func (f *Facade) SetMayorMode(enabled bool) error {
	if err := f.provider.SetMayorMode(enabled); err != nil {
		return oops.
			In("city").
			With("enabled", enabled).
			Wrapf(err, "set mayor mode")
	}
	return nil
}

// Date returns the raw game date counter.
func (f *Facade) Date() uint32 { return f.provider.Date() }

// Time returns the raw game clock counter.
func (f *Facade) Time() uint32 { return f.provider.Time() }

// Stats returns the cached statistics snapshot, refreshing it from the
// provider if the cache has been invalidated since the last read. With no
// valid city the snapshot is all zeros.
func (f *Facade) Stats() Stats {
	if !f.statsValid {
		if f.provider.Valid() {
			f.cachedStats = f.provider.Stats()
		} else {
			f.cachedStats = Stats{}
		}
		f.statsValid = true
	}
	return f.cachedStats
}

// InvalidateCache drops the stats snapshot. The dispatcher calls this on
// every city init so the first read in a fresh city refetches.
func (f *Facade) InvalidateCache() {
	f.statsValid = false
	slog.Debug("city stats cache invalidated")
}
