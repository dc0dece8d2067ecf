package client

import (
	"fmt"
	"time"

	"github.com/ametov/acctl/internal/protocol/dispatch"
	"github.com/ametov/acctl/internal/protocol/schema"
)

// Channel names the two inbound telemetry sources.
type Channel string

const (
	ChannelController Channel = "controller"
	ChannelInverter   Channel = "inverter"
)

// Event is one item on the consumer stream: a decoded snapshot, an unmatched
// diagnostic, or a one-shot staleness reset.
type Event interface {
	eventAt() time.Time
}

// TelemetryEvent carries one decoded controller snapshot.
type TelemetryEvent struct {
	At       time.Time
	Snapshot dispatch.ControllerTelemetry
}

// InverterEvent carries one decoded inverter snapshot.
type InverterEvent struct {
	At       time.Time
	Snapshot dispatch.InverterTelemetry
}

// UnmatchedEvent surfaces foreign traffic for diagnostics.
type UnmatchedEvent struct {
	At    time.Time
	Frame dispatch.Unmatched
}

// StaleEvent fires once when a channel's telemetry times out, so consumers
// can clear derived values.
type StaleEvent struct {
	At      time.Time
	Channel Channel
}

func (e TelemetryEvent) eventAt() time.Time { return e.At }
func (e InverterEvent) eventAt() time.Time  { return e.At }
func (e UnmatchedEvent) eventAt() time.Time { return e.At }
func (e StaleEvent) eventAt() time.Time     { return e.At }

func signatureString(s schema.Signature) string {
	return fmt.Sprintf("id=0x%X ext=%t len>=%d", s.ID, s.Extended, s.MinLen)
}
