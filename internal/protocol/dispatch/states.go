package dispatch

import "fmt"

// MainStandby is the controller Main state that switches the SET command
// into standby mode.
const MainStandby uint8 = 2

var controllerMainLabels = map[uint8]string{
	0: "off",
	1: "testing",
	2: "standby",
	3: "running",
	4: "fault",
	5: "purge",
}

var controllerSubLabels = map[uint8]string{
	0: "stopping",
	1: "off",
	2: "running",
	3: "entering standby",
	4: "standby",
}

// Inverter Main comes from payload byte 7, Sub from byte 6.
var inverterMainLabels = map[uint8]string{
	0: "off",
	1: "paused",
	2: "soft stop",
	3: "on",
	4: "shutting down",
}

var inverterSubLabels = map[uint8]string{
	0: "off",
	1: "on",
	2: "paused",
	3: "soft stop",
}

func label(table map[uint8]string, v uint8) string {
	if s, ok := table[v]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", v)
}

func MainStateLabel(v uint8) string { return label(controllerMainLabels, v) }
func SubStateLabel(v uint8) string  { return label(controllerSubLabels, v) }

func InverterMainLabel(v uint8) string { return label(inverterMainLabels, v) }
func InverterSubLabel(v uint8) string  { return label(inverterSubLabels, v) }

func (t ControllerTelemetry) MainLabel() string { return MainStateLabel(t.Main) }
func (t ControllerTelemetry) SubLabel() string  { return SubStateLabel(t.Sub) }

func (t InverterTelemetry) MainLabel() string { return InverterMainLabel(t.Main) }
func (t InverterTelemetry) SubLabel() string  { return InverterSubLabel(t.Sub) }

// Inverter error bitmask bits (payload byte 5).
const (
	InvFaultOverCurrent byte = 0x01
	InvFaultU1Abnormal  byte = 0x02
	InvFaultU2Abnormal  byte = 0x04
	InvFaultOverTemp    byte = 0x08
	InvFault18V         byte = 0x10
)

var inverterFaultNames = []struct {
	bit  byte
	name string
}{
	{InvFaultOverCurrent, "over-current"},
	{InvFaultU1Abnormal, "U1 abnormal"},
	{InvFaultU2Abnormal, "U2 abnormal"},
	{InvFaultOverTemp, "over-temperature"},
	{InvFault18V, "18V flag"},
}

// InverterFaults expands the error bitmask into named faults, in bit order.
func InverterFaults(mask byte) []string {
	var out []string
	for _, f := range inverterFaultNames {
		if mask&f.bit != 0 {
			out = append(out, f.name)
		}
	}
	return out
}

// Faults returns the named faults of the snapshot's error mask; nil when the
// mask is absent or clear.
func (t InverterTelemetry) Faults() []string {
	if !t.HasErrorMask {
		return nil
	}
	return InverterFaults(t.ErrorMask)
}
