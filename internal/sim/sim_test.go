package sim

import (
	"testing"
	"time"

	"github.com/ametov/acctl/internal/config"
	"github.com/ametov/acctl/internal/protocol/dispatch"
	"github.com/ametov/acctl/internal/protocol/frame"
	"github.com/ametov/acctl/internal/protocol/schema"
	"github.com/ametov/acctl/internal/testutil/testlog"
	"github.com/ametov/acctl/internal/transport"
)

func simSchema(t *testing.T) schema.Schema {
	t.Helper()
	yes := true
	sch, err := schema.Compile(config.Config{Messages: map[string]config.MessageConfig{
		config.KeyTelemetry:         {ID: int64(0x5E0100), Extended: &yes},
		config.KeyInverterTelemetry: {ID: int64(0x5E0200), Extended: &yes},
		"START": {ID: int64(0x5E0001), Extended: &yes, DataTemplate: []any{
			int64(0x01), int64(0), int64(0), int64(0), int64(0), int64(0), int64(0),
			map[string]any{"field": "value"},
		}},
		"SET": {ID: int64(0x5E0002), Extended: &yes, DataTemplate: []any{
			int64(0x01), int64(0), map[string]any{"field": "mode"},
			int64(0), int64(0), int64(0), int64(0),
			map[string]any{"field": "value"},
		}},
	}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return sch
}

func collect(t *testing.T, ep transport.Transport, n int) []frame.Raw {
	t.Helper()
	out := make([]frame.Raw, 0, n)
	for len(out) < n {
		f, ok, err := ep.Receive(time.Second)
		if err != nil || !ok {
			t.Fatalf("receive: ok=%t err=%v", ok, err)
		}
		out = append(out, f)
	}
	return out
}

func TestStepEmitsDecodableTelemetry(t *testing.T) {
	testlog.Start(t)
	sch := simSchema(t)
	bus := transport.NewLoopbackBus()
	peer := bus.Endpoint()
	defer peer.Close()

	s := New(bus.Endpoint(), sch)
	s.Step()

	d := dispatch.New(sch)
	frames := collect(t, peer, 2)

	ctrl, ok := d.Dispatch(frames[0]).(dispatch.ControllerTelemetry)
	if !ok {
		t.Fatalf("first frame should decode as controller telemetry: %s", frames[0])
	}
	if ctrl.Setpoint != 25 {
		t.Fatalf("initial setpoint mismatch: %+v", ctrl)
	}
	if ctrl.Main != 2 {
		t.Fatalf("idle device should report standby, got main=%d", ctrl.Main)
	}

	inv, ok := d.Dispatch(frames[1]).(dispatch.InverterTelemetry)
	if !ok {
		t.Fatalf("second frame should decode as inverter telemetry: %s", frames[1])
	}
	if inv.Voltage != 48 || !inv.HasMain || inv.Main != 0 {
		t.Fatalf("idle inverter mismatch: %+v", inv)
	}
}

func TestStartCommandSwitchesToRunning(t *testing.T) {
	testlog.Start(t)
	sch := simSchema(t)
	bus := transport.NewLoopbackBus()
	peer := bus.Endpoint()
	defer peer.Close()

	s := New(bus.Endpoint(), sch)
	d := dispatch.New(sch)

	if err := peer.Send(frame.Raw{ID: 0x5E0001, Extended: true, Data: []byte{0x01, 0, 0, 0, 0, 0, 0, 25}}); err != nil {
		t.Fatalf("send start: %v", err)
	}
	s.Step()

	ctrl := d.Dispatch(collect(t, peer, 2)[0]).(dispatch.ControllerTelemetry)
	if ctrl.Main != 3 {
		t.Fatalf("started device should report running, got main=%d", ctrl.Main)
	}
	if ctrl.CondenserFan != 2 || ctrl.EvaporatorFan != 2 {
		t.Fatalf("running fans should spin: %+v", ctrl)
	}

	if err := peer.Send(frame.Raw{ID: 0x5E0001, Extended: true, Data: []byte{0x02, 0, 0, 0, 0, 0, 0, 25}}); err != nil {
		t.Fatalf("send stop: %v", err)
	}
	s.Step()
	ctrl = d.Dispatch(collect(t, peer, 2)[0]).(dispatch.ControllerTelemetry)
	if ctrl.Main != 2 {
		t.Fatalf("stopped device should return to standby, got main=%d", ctrl.Main)
	}
}

func TestSetCommandChangesSetpointAndTempDrifts(t *testing.T) {
	testlog.Start(t)
	sch := simSchema(t)
	bus := transport.NewLoopbackBus()
	peer := bus.Endpoint()
	defer peer.Close()

	s := New(bus.Endpoint(), sch)
	d := dispatch.New(sch)

	if err := peer.Send(frame.Raw{ID: 0x5E0001, Extended: true, Data: []byte{0x01, 0, 0, 0, 0, 0, 0, 25}}); err != nil {
		t.Fatalf("send start: %v", err)
	}
	if err := peer.Send(frame.Raw{ID: 0x5E0002, Extended: true, Data: []byte{0x01, 0, 0x20, 0, 0, 0, 0, 20}}); err != nil {
		t.Fatalf("send set: %v", err)
	}

	var ctrl dispatch.ControllerTelemetry
	for i := 0; i < 20; i++ {
		s.Step()
		ctrl = d.Dispatch(collect(t, peer, 2)[0]).(dispatch.ControllerTelemetry)
	}
	if ctrl.Setpoint != 20 {
		t.Fatalf("setpoint should follow SET: %+v", ctrl)
	}
	if ctrl.Temp > 21 {
		t.Fatalf("temperature should converge on the setpoint, got %d", ctrl.Temp)
	}
}
