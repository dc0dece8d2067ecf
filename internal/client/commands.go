package client

import (
	"errors"
	"fmt"

	"github.com/ametov/acctl/internal/observability"
	"github.com/ametov/acctl/internal/protocol/dispatch"
	"github.com/ametov/acctl/internal/protocol/frame"
)

// Well-known outbound message keys.
const (
	MsgStart       = "START"
	MsgStop        = "STOP"
	MsgSet         = "SET"
	MsgParamsSpeed = "PARAMS_SPEED"
	MsgParamsTemp  = "PARAMS_TEMP"
)

// SET command mode byte: standby when the last known Main state is the
// standby value, active otherwise (including when no telemetry exists yet).
const (
	setModeStandby byte = 0x00
	setModeActive  byte = 0x20
)

// ErrSetpointUnknown rejects START/STOP before any controller telemetry has
// delivered a setpoint. Checked before any encode or send.
var ErrSetpointUnknown = errors.New("client: controller setpoint not yet received")

// Send encodes the named schema message with the given context and transmits
// it synchronously on the caller's goroutine.
func (c *Client) Send(key string, ctx map[string]float64) error {
	msg, err := c.schema.Lookup(key)
	if err != nil {
		return err
	}
	raw := frame.Build(msg, ctx)
	if err := c.tr.Send(raw); err != nil {
		return fmt.Errorf("send %s: %w", key, err)
	}
	observability.RecordCommandSent(key)
	c.log.Info().Str("key", key).Str("frame", raw.String()).Msg("command sent")
	return nil
}

// Start issues the START command. Its final payload byte carries the last
// known controller setpoint, so it is rejected until telemetry has arrived.
func (c *Client) Start() error {
	return c.sendWithSetpoint(MsgStart)
}

// Stop issues the STOP command under the same precondition as Start.
func (c *Client) Stop() error {
	return c.sendWithSetpoint(MsgStop)
}

func (c *Client) sendWithSetpoint(key string) error {
	setpoint, ok := c.state.Setpoint()
	if !ok {
		return ErrSetpointUnknown
	}
	return c.Send(key, map[string]float64{"value": float64(setpoint)})
}

// Set commands a new target setpoint. The mode byte is 0x00 when the last
// known Main state equals standby, 0x20 otherwise.
func (c *Client) Set(target int) error {
	mode := setModeActive
	if main, ok := c.state.MainState(); ok && main == dispatch.MainStandby {
		mode = setModeStandby
	}
	return c.Send(MsgSet, map[string]float64{
		"value": float64(target),
		"mode":  float64(mode),
	})
}

// FanSpeeds carries the three configured percentages per fan.
type FanSpeeds struct {
	Condenser  [3]int
	Evaporator [3]int
}

// SendFanSpeeds transmits the PARAMS_SPEED message.
func (c *Client) SendFanSpeeds(s FanSpeeds) error {
	return c.Send(MsgParamsSpeed, map[string]float64{
		"c1": float64(s.Condenser[0]),
		"c2": float64(s.Condenser[1]),
		"c3": float64(s.Condenser[2]),
		"e1": float64(s.Evaporator[0]),
		"e2": float64(s.Evaporator[1]),
		"e3": float64(s.Evaporator[2]),
	})
}

// SendTempThresholds transmits the PARAMS_TEMP message.
func (c *Client) SendTempThresholds(t1, t2, t3, t4 int) error {
	return c.Send(MsgParamsTemp, map[string]float64{
		"t1": float64(t1),
		"t2": float64(t2),
		"t3": float64(t3),
		"t4": float64(t4),
	})
}
