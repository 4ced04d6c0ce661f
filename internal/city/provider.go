// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

// Package city exposes host game state to plugins through a cached facade.
//
// The hosting simulation implements Provider; the core and the Lua bindings
// only ever see the Facade. All methods are called from the host's single
// call-in thread; implementations do not need to be safe for concurrent use.
package city

// Stats is a snapshot of city-wide simulation counters.
type Stats struct {
	ResidentialPopulation uint32
	CommercialPopulation  uint32
	IndustrialPopulation  uint32
	TotalJobs             uint32
	PowerProduced         uint32
	PowerConsumed         uint32
	WaterProduced         uint32
	WaterConsumed         uint32
}

// Provider is the host-side accessor over live city state. A provider may
// become invalid between cities; Valid reports whether the other accessors
// are currently backed by a city.
type Provider interface {
	Valid() bool
	Name() string
	Population() uint32
	Money() int64
	SetMoney(amount int64) error
	Deposit(amount int64) error
	Withdraw(amount int64) error
	MayorMode() bool
	SetMayorMode(enabled bool) error
	// Date and Time return the raw game date and clock counters.
	Date() uint32
	Time() uint32
	Stats() Stats
}

// Detached returns a Provider with no city behind it: Valid is false, reads
// return zero values, and writes are silently dropped. Used when the
// embedder has not supplied a provider yet.
func Detached() Provider { return detached{} }

type detached struct{}

func (detached) Valid() bool             { return false }
func (detached) Name() string            { return "" }
func (detached) Population() uint32      { return 0 }
func (detached) Money() int64            { return 0 }
func (detached) SetMoney(int64) error    { return nil }
func (detached) Deposit(int64) error     { return nil }
func (detached) Withdraw(int64) error    { return nil }
func (detached) MayorMode() bool         { return false }
func (detached) SetMayorMode(bool) error { return nil }
func (detached) Date() uint32            { return 0 }
func (detached) Time() uint32            { return 0 }
func (detached) Stats() Stats            { return Stats{} }

var _ Provider = detached{}
