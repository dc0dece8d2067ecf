package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/ametov/acctl/internal/config"
)

func boolPtr(b bool) *bool { return &b }

func TestCompileHexStringAndIntIDs(t *testing.T) {
	cfg := config.Config{Messages: map[string]config.MessageConfig{
		"A": {ID: "0x5E0001", Extended: boolPtr(true), Data: []int{1}},
		"B": {ID: int64(0x123), Data: []int{2}},
	}}
	sch, err := Compile(cfg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	a, err := sch.Lookup("A")
	if err != nil {
		t.Fatalf("lookup A: %v", err)
	}
	if a.ID != 0x5E0001 || !a.Extended {
		t.Fatalf("A identity mismatch: %+v", a)
	}
	b, err := sch.Lookup("B")
	if err != nil {
		t.Fatalf("lookup B: %v", err)
	}
	if b.ID != 0x123 || b.Extended {
		t.Fatalf("B identity mismatch: %+v", b)
	}
}

func TestCompileInvalidEntryDoesNotPoisonOthers(t *testing.T) {
	cfg := config.Config{Messages: map[string]config.MessageConfig{
		"GOOD": {ID: int64(0x100), Data: []int{1}},
		"BAD":  {ID: "not-an-id", Data: []int{2}},
	}}
	sch, err := Compile(cfg)
	if err == nil {
		t.Fatal("expected a compile error for BAD")
	}
	var entryErr EntryError
	if !errors.As(err, &entryErr) || entryErr.Key != "BAD" {
		t.Fatalf("expected EntryError for BAD, got %v", err)
	}
	if _, err := sch.Lookup("GOOD"); err != nil {
		t.Fatalf("GOOD should survive compilation: %v", err)
	}
	if _, err := sch.Lookup("BAD"); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("BAD should be absent: %v", err)
	}
}

func TestCompileWellKnownKeysOverrideSignatures(t *testing.T) {
	cfg := config.Config{Messages: map[string]config.MessageConfig{
		config.KeyTelemetry:         {ID: "0x700", Extended: boolPtr(false)},
		config.KeyInverterTelemetry: {ID: "0x1ABCDE", Extended: boolPtr(true)},
	}}
	sch, err := Compile(cfg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if sch.Telemetry.ID != 0x700 || sch.Telemetry.Extended {
		t.Fatalf("telemetry signature mismatch: %+v", sch.Telemetry)
	}
	if sch.Telemetry.MinLen != TelemetryMinLen {
		t.Fatalf("telemetry min length changed: %d", sch.Telemetry.MinLen)
	}
	if sch.Inverter.ID != 0x1ABCDE || !sch.Inverter.Extended {
		t.Fatalf("inverter signature mismatch: %+v", sch.Inverter)
	}
}

func TestCompileWellKnownBadIDFallsBackToDefaults(t *testing.T) {
	cfg := config.Config{Messages: map[string]config.MessageConfig{
		config.KeyTelemetry: {ID: "garbage"},
	}}
	sch, err := Compile(cfg)
	if err != nil {
		t.Fatalf("fallback should be benign, got error: %v", err)
	}
	if sch.Telemetry.ID != DefaultTelemetryID || !sch.Telemetry.Extended {
		t.Fatalf("expected default telemetry signature, got %+v", sch.Telemetry)
	}
}

func TestCompileWellKnownFallbackKeepsExplicitExtendedFlag(t *testing.T) {
	// An unset flag still defaults to true alongside the id fallback.
	sch, err := Compile(config.Config{Messages: map[string]config.MessageConfig{
		config.KeyTelemetry: {ID: "garbage"},
	}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !sch.Telemetry.Extended {
		t.Fatal("unset flag should default to extended")
	}

	// An explicit flag survives the fallback. The default id does not fit
	// an 11-bit standard frame, so the mismatch surfaces as an entry error
	// instead of being papered over by flipping the flag.
	_, err = Compile(config.Config{Messages: map[string]config.MessageConfig{
		config.KeyTelemetry: {ID: "garbage", Extended: boolPtr(false)},
	}})
	if err == nil {
		t.Fatal("standard-frame fallback id should be rejected, not silently widened")
	}
	var entryErr EntryError
	if !errors.As(err, &entryErr) || entryErr.Key != config.KeyTelemetry {
		t.Fatalf("expected an entry error for %s, got %v", config.KeyTelemetry, err)
	}
	if !strings.Contains(entryErr.Reason, "11 bits") {
		t.Fatalf("expected the 11-bit range check to trip, got %q", entryErr.Reason)
	}
}

func TestCompileMissingWellKnownKeysUseDefaults(t *testing.T) {
	sch, err := Compile(config.Config{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if sch.Telemetry.ID != DefaultTelemetryID || sch.Inverter.ID != DefaultInverterID {
		t.Fatalf("default signatures missing: %+v %+v", sch.Telemetry, sch.Inverter)
	}
}

func TestCompileIDRangeChecks(t *testing.T) {
	cfg := config.Config{Messages: map[string]config.MessageConfig{
		"STD_TOO_BIG": {ID: int64(0x800), Extended: boolPtr(false)},
		"EXT_TOO_BIG": {ID: int64(0x20000000), Extended: boolPtr(true)},
	}}
	_, err := Compile(cfg)
	if err == nil {
		t.Fatal("expected range errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "STD_TOO_BIG") || !strings.Contains(msg, "EXT_TOO_BIG") {
		t.Fatalf("both entries should be reported: %v", err)
	}
}

func TestCompileTemplateFields(t *testing.T) {
	cfg := config.Config{Messages: map[string]config.MessageConfig{
		"SET": {ID: int64(0x5E0002), Extended: boolPtr(true), DataTemplate: []any{
			int64(0x01),
			map[string]any{"field": "mode"},
			map[string]any{"field": "value", "scale": float64(10), "bytes": int64(2), "endian": "be"},
			map[string]any{"value": int64(7)},
		}},
	}}
	sch, err := Compile(cfg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	msg, _ := sch.Lookup("SET")
	if len(msg.Template) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(msg.Template))
	}
	if msg.Template[0].Const != 0x01 || msg.Template[0].Width != 1 {
		t.Fatalf("bare constant mismatch: %+v", msg.Template[0])
	}
	if msg.Template[1].Key != "mode" || msg.Template[1].Scale != 1 {
		t.Fatalf("named field mismatch: %+v", msg.Template[1])
	}
	f := msg.Template[2]
	if f.Key != "value" || f.Scale != 10 || f.Width != 2 || f.Endian != BigEndian {
		t.Fatalf("scaled field mismatch: %+v", f)
	}
	if msg.Template[3].Const != 7 || msg.Template[3].Key != "" {
		t.Fatalf("table constant mismatch: %+v", msg.Template[3])
	}
}

func TestCompileRejectsBadTemplateField(t *testing.T) {
	cases := map[string]any{
		"bad width":  map[string]any{"field": "v", "bytes": int64(3)},
		"bad endian": map[string]any{"field": "v", "endian": "middle"},
		"bad type":   "nope",
		"empty name": map[string]any{"field": ""},
	}
	for name, item := range cases {
		cfg := config.Config{Messages: map[string]config.MessageConfig{
			"M": {ID: int64(0x100), DataTemplate: []any{item}},
		}}
		if _, err := Compile(cfg); err == nil {
			t.Fatalf("%s: expected compile error", name)
		}
	}
}

func TestCompileRejectsDataAndTemplateTogether(t *testing.T) {
	cfg := config.Config{Messages: map[string]config.MessageConfig{
		"M": {ID: int64(0x100), Data: []int{1}, DataTemplate: []any{int64(2)}},
	}}
	if _, err := Compile(cfg); err == nil {
		t.Fatal("expected mutual-exclusion error")
	}
}

func TestSignatureMatches(t *testing.T) {
	sig := Signature{ID: 0x5E0100, Extended: true, MinLen: 8}
	if !sig.Matches(0x5E0100, true, 8) {
		t.Fatal("exact match should pass")
	}
	if sig.Matches(0x5E0100, false, 8) {
		t.Fatal("standard frame must not match an extended signature")
	}
	if sig.Matches(0x5E0100, true, 7) {
		t.Fatal("short payload must not match")
	}
	if sig.Matches(0x5E0101, true, 8) {
		t.Fatal("different id must not match")
	}
}
