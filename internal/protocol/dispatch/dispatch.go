// Package dispatch classifies raw inbound frames against the two known
// telemetry signatures and decodes them into typed snapshots.
package dispatch

import (
	"github.com/ametov/acctl/internal/protocol/frame"
	"github.com/ametov/acctl/internal/protocol/schema"
)

// Event is the result of dispatching one raw frame: exactly one of
// ControllerTelemetry, InverterTelemetry, or Unmatched.
type Event interface {
	event()
}

// ControllerTelemetry is the decoded controller state frame.
type ControllerTelemetry struct {
	ErrorCode     byte
	Setpoint      byte // °C
	Temp          byte // °C
	CondenserTemp byte // °C

	// Fan byte (payload byte 6): high nibble condenser, low nibble
	// evaporator, clamped to the 0..3 level range.
	CondenserFan  uint8
	EvaporatorFan uint8

	// State byte (payload byte 7) nibbles, unclamped. Label lookups render
	// out-of-table values as unknown(n).
	Main uint8
	Sub  uint8

	Raw []byte
}

func (ControllerTelemetry) event() {}

// InverterTelemetry is the decoded inverter state frame. Fields past the
// guaranteed first three bytes are present only when the payload is long
// enough; presence is explicit so absence stays distinguishable from zero.
type InverterTelemetry struct {
	Current byte // A
	Voltage byte // V
	Temp    byte // °C

	ErrorMask    byte
	HasErrorMask bool

	Sub    uint8
	HasSub bool

	Main    uint8
	HasMain bool

	Raw []byte
}

func (InverterTelemetry) event() {}

// Unmatched carries foreign traffic for diagnostic surfacing. It is a normal
// outcome on a shared bus, never an error.
type Unmatched struct {
	ID       uint32
	Extended bool
	Data     []byte
}

func (Unmatched) event() {}

// Dispatcher matches raw frames against the compiled inbound signatures.
type Dispatcher struct {
	controller schema.Signature
	inverter   schema.Signature
}

func New(s schema.Schema) Dispatcher {
	return Dispatcher{controller: s.Telemetry, inverter: s.Inverter}
}

// Signatures returns the controller and inverter match signatures.
func (d Dispatcher) Signatures() (controller, inverter schema.Signature) {
	return d.controller, d.inverter
}

// Dispatch classifies one frame. Controller telemetry is checked first, then
// the inverter; anything else comes back as Unmatched with the raw bytes.
func (d Dispatcher) Dispatch(r frame.Raw) Event {
	if d.controller.Matches(r.ID, r.Extended, len(r.Data)) {
		return decodeController(r.Data)
	}
	if d.inverter.Matches(r.ID, r.Extended, len(r.Data)) {
		return decodeInverter(r.Data)
	}
	return Unmatched{ID: r.ID, Extended: r.Extended, Data: cloneBytes(r.Data)}
}

func decodeController(d []byte) ControllerTelemetry {
	return ControllerTelemetry{
		ErrorCode:     d[0],
		Setpoint:      d[1],
		Temp:          d[2],
		CondenserTemp: d[3],
		CondenserFan:  clampFanLevel(highNibble(d[6])),
		EvaporatorFan: clampFanLevel(lowNibble(d[6])),
		Main:          highNibble(d[7]),
		Sub:           lowNibble(d[7]),
		Raw:           cloneBytes(d),
	}
}

func decodeInverter(d []byte) InverterTelemetry {
	snap := InverterTelemetry{
		Current: d[0],
		Voltage: d[1],
		Temp:    d[2],
		Raw:     cloneBytes(d),
	}
	if len(d) >= 6 {
		snap.ErrorMask = d[5]
		snap.HasErrorMask = true
	}
	if len(d) >= 7 {
		snap.Sub = d[6]
		snap.HasSub = true
	}
	if len(d) >= 8 {
		snap.Main = d[7]
		snap.HasMain = true
	}
	return snap
}

func highNibble(b byte) uint8 { return (b >> 4) & 0xF }
func lowNibble(b byte) uint8  { return b & 0xF }

func clampFanLevel(v uint8) uint8 {
	if v > 3 {
		return 3
	}
	return v
}

func cloneBytes(d []byte) []byte {
	out := make([]byte, len(d))
	copy(out, d)
	return out
}
