package client

import (
	"sync"

	"github.com/ametov/acctl/internal/protocol/dispatch"
)

// ConnectionState aggregates the last decoded snapshots. It is owned by the
// client; the reader goroutine writes, command callers read copies. Stale
// channels are cleared so derived values (setpoint, Main state) disappear
// together with the display.
type ConnectionState struct {
	mu            sync.RWMutex
	controller    dispatch.ControllerTelemetry
	hasController bool
	inverter      dispatch.InverterTelemetry
	hasInverter   bool
}

// Controller returns a copy of the last controller snapshot, if any.
func (s *ConnectionState) Controller() (dispatch.ControllerTelemetry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controller, s.hasController
}

// Inverter returns a copy of the last inverter snapshot, if any.
func (s *ConnectionState) Inverter() (dispatch.InverterTelemetry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inverter, s.hasInverter
}

// Setpoint returns the last controller setpoint, the precondition for
// START/STOP.
func (s *ConnectionState) Setpoint() (byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasController {
		return 0, false
	}
	return s.controller.Setpoint, true
}

// MainState returns the last known controller Main state nibble.
func (s *ConnectionState) MainState() (uint8, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasController {
		return 0, false
	}
	return s.controller.Main, true
}

func (s *ConnectionState) setController(snap dispatch.ControllerTelemetry) {
	s.mu.Lock()
	s.controller = snap
	s.hasController = true
	s.mu.Unlock()
}

func (s *ConnectionState) setInverter(snap dispatch.InverterTelemetry) {
	s.mu.Lock()
	s.inverter = snap
	s.hasInverter = true
	s.mu.Unlock()
}

func (s *ConnectionState) clearController() {
	s.mu.Lock()
	s.controller = dispatch.ControllerTelemetry{}
	s.hasController = false
	s.mu.Unlock()
}

func (s *ConnectionState) clearInverter() {
	s.mu.Lock()
	s.inverter = dispatch.InverterTelemetry{}
	s.hasInverter = false
	s.mu.Unlock()
}
