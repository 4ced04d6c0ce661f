// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

// Package event defines the host event shapes delivered to plugins and the
// well-known message and cheat identifiers of the hosting simulation.
package event

// Kind identifies the kind of host event.
type Kind uint8

// Event kinds dispatched to plugins.
const (
	KindMessage Kind = iota
	KindCheat
	KindCityInit
	KindCityShutdown
)

// String returns the string representation of a Kind.
// Unrecognized kinds return "unknown".
func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindCheat:
		return "cheat"
	case KindCityInit:
		return "city_init"
	case KindCityShutdown:
		return "city_shutdown"
	default:
		return "unknown"
	}
}

// Event is a host-originated occurrence routable to plugins. Events are
// transient values constructed per delivery and never stored.
type Event interface {
	Kind() Kind
}

// Message is a generic host message: a numeric type plus up to three numeric
// payload fields, mirroring the host's native event record.
type Message struct {
	Type  uint32
	Data1 uint32
	Data2 uint32
	Data3 uint32
}

// Kind returns KindMessage.
func (Message) Kind() Kind { return KindMessage }

// Cheat is a cheat/command submission: the host-assigned numeric id plus the
// text the player typed.
type Cheat struct {
	ID   uint32
	Text string
}

// Kind returns KindCheat.
func (Cheat) Kind() Kind { return KindCheat }

// CityInit signals that a city has been opened or re-entered. No payload.
type CityInit struct{}

// Kind returns KindCityInit.
func (CityInit) Kind() Kind { return KindCityInit }

// CityShutdown signals that the current city is closing. No payload.
type CityShutdown struct{}

// Kind returns KindCityShutdown.
func (CityShutdown) Kind() Kind { return KindCityShutdown }

// Well-known host message types.
const (
	// MsgCityInit is broadcast after a city has loaded.
	MsgCityInit uint32 = 0x26C63345
	// MsgCityShutdown is broadcast as a city begins closing.
	MsgCityShutdown uint32 = 0x26C63346
	// MsgCheatIssued carries a cheat id in data1 and the cheat text pointer
	// in data2 on the native side.
	MsgCheatIssued uint32 = 0x230E27AC
	// MsgQueryExecStart and MsgQueryExecEnd bracket a query tool execution.
	MsgQueryExecStart uint32 = 0x26AD8E01
	MsgQueryExecEnd   uint32 = 0x26AD8E02
)

// Native cheat ids assigned by the host itself. These never collide with the
// ids minted for plugin-registered cheats, which live in a separate space.
const (
	CheatFund  uint32 = 0x6990
	CheatPower uint32 = 0x1DE4F79A
	CheatWater uint32 = 0x1DE4F79B
)
