// Package sim generates controller and inverter telemetry on a transport,
// standing in for the real device on a loopback bus.
package sim

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ametov/acctl/internal/observability"
	"github.com/ametov/acctl/internal/protocol/frame"
	"github.com/ametov/acctl/internal/protocol/schema"
)

// Controller Main/Sub nibbles emitted by the simulated device.
const (
	mainStandby = 2
	mainRunning = 3
	subStandby  = 4
	subRunning  = 2
)

// Simulator is a scripted device: it answers START/STOP/SET commands and
// drifts the measured temperature toward the setpoint while running.
type Simulator struct {
	tr  bus
	sch schema.Schema
	log zerolog.Logger

	commandID uint32
	setID     uint32
	hasSet    bool

	running  bool
	setpoint byte
	temp     float64
	cond     float64
}

// bus is the subset of the transport handle the simulator needs.
type bus interface {
	Send(f frame.Raw) error
	Receive(timeout time.Duration) (frame.Raw, bool, error)
}

// New builds a simulator that emits on the schema's inbound signatures and
// understands the START/STOP and SET commands when the schema defines them.
func New(tr bus, sch schema.Schema) *Simulator {
	s := &Simulator{
		tr:       tr,
		sch:      sch,
		log:      observability.Logger("sim"),
		setpoint: 25,
		temp:     30,
		cond:     32,
	}
	if msg, err := sch.Lookup("START"); err == nil {
		s.commandID = msg.ID
	}
	if msg, err := sch.Lookup("SET"); err == nil {
		s.setID = msg.ID
		s.hasSet = true
	}
	return s
}

// Run ticks at the given interval until ctx is canceled.
func (s *Simulator) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Step()
		}
	}
}

// Step drains pending commands, advances the thermal model by one tick, and
// emits one controller and one inverter telemetry frame.
func (s *Simulator) Step() {
	s.drainCommands()
	s.advance()
	if err := s.tr.Send(s.controllerFrame()); err != nil {
		s.log.Warn().Err(err).Msg("telemetry send failed")
		return
	}
	if err := s.tr.Send(s.inverterFrame()); err != nil {
		s.log.Warn().Err(err).Msg("inverter telemetry send failed")
	}
}

func (s *Simulator) drainCommands() {
	for {
		raw, ok, err := s.tr.Receive(0)
		if err != nil || !ok {
			return
		}
		s.handleCommand(raw)
	}
}

// handleCommand mirrors the starter template payloads: START/STOP share one
// id distinguished by the opcode byte, SET carries the mode in byte 2 and the
// target setpoint in the final byte.
func (s *Simulator) handleCommand(raw frame.Raw) {
	if len(raw.Data) == 0 {
		return
	}
	switch {
	case s.commandID != 0 && raw.ID == s.commandID:
		switch raw.Data[0] {
		case 0x01:
			s.running = true
			s.log.Info().Msg("start command accepted")
		case 0x02:
			s.running = false
			s.log.Info().Msg("stop command accepted")
		}
	case s.hasSet && raw.ID == s.setID && len(raw.Data) >= 8:
		s.setpoint = raw.Data[7]
		s.log.Info().Uint8("setpoint", s.setpoint).Msg("setpoint changed")
	}
}

func (s *Simulator) advance() {
	target := float64(s.setpoint)
	if !s.running {
		target = 30 // ambient drift when idle
	}
	switch {
	case s.temp > target+0.5:
		s.temp -= 1
	case s.temp < target-0.5:
		s.temp += 1
	}
	s.cond = s.temp + 6
}

func (s *Simulator) controllerFrame() frame.Raw {
	fan := byte(0)
	main, sub := byte(mainStandby), byte(subStandby)
	if s.running {
		fan = 0x22 // level 2 on both fans
		main, sub = mainRunning, subRunning
	}
	data := []byte{
		0, // no error
		s.setpoint,
		byte(s.temp),
		byte(s.cond),
		0,
		0,
		fan,
		main<<4 | sub,
	}
	return frame.Raw{ID: s.sch.Telemetry.ID, Extended: s.sch.Telemetry.Extended, Data: data}
}

func (s *Simulator) inverterFrame() frame.Raw {
	current, invMain, invSub := byte(1), byte(0), byte(0)
	if s.running {
		current, invMain, invSub = 12, 3, 1
	}
	data := []byte{
		current,
		48, // bus voltage
		byte(s.temp + 5),
		0,
		0,
		0, // no faults
		invSub,
		invMain,
	}
	return frame.Raw{ID: s.sch.Inverter.ID, Extended: s.sch.Inverter.Extended, Data: data}
}
