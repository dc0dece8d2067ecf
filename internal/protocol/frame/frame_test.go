package frame

import (
	"bytes"
	"testing"

	"github.com/ametov/acctl/internal/protocol/schema"
)

func TestEncodeLiteralPadsToEight(t *testing.T) {
	msg := schema.Message{Name: "PING", Literal: []byte{0xDE, 0xAD}}
	got := Encode(msg, nil)
	want := [PayloadLen]byte{0xDE, 0xAD, 0, 0, 0, 0, 0, 0}
	if got != want {
		t.Fatalf("payload mismatch: got=%v want=%v", got, want)
	}
}

func TestEncodeLiteralTruncatesPastEight(t *testing.T) {
	msg := schema.Message{Literal: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	got := Encode(msg, nil)
	want := [PayloadLen]byte{1, 2, 3, 4, 5, 6, 7, 8}
	if got != want {
		t.Fatalf("payload mismatch: got=%v want=%v", got, want)
	}
}

func TestEncodeTemplateConstantsAndFields(t *testing.T) {
	msg := schema.Message{Template: []schema.Field{
		{Const: 0x01, Scale: 1, Width: 1},
		{Key: "value", Scale: 1, Width: 1},
	}}
	got := Encode(msg, map[string]float64{"value": 22})
	want := [PayloadLen]byte{0x01, 22, 0, 0, 0, 0, 0, 0}
	if got != want {
		t.Fatalf("payload mismatch: got=%v want=%v", got, want)
	}
}

func TestEncodeMissingContextKeyIsZero(t *testing.T) {
	msg := schema.Message{Template: []schema.Field{
		{Key: "absent", Scale: 1, Width: 2},
	}}
	got := Encode(msg, map[string]float64{})
	if got != ([PayloadLen]byte{}) {
		t.Fatalf("expected all-zero payload, got %v", got)
	}
}

func TestEncodeScaleRoundsHalfAwayFromZero(t *testing.T) {
	msg := schema.Message{Template: []schema.Field{
		{Key: "v", Scale: 10, Width: 2},
	}}

	got := Encode(msg, map[string]float64{"v": 2.25})
	if got[0] != 23 || got[1] != 0 {
		t.Fatalf("2.25*10 should round to 23, got %v", got[:2])
	}

	got = Encode(msg, map[string]float64{"v": -2.25})
	// -23 as little-endian uint16
	if got[0] != 0xE9 || got[1] != 0xFF {
		t.Fatalf("-2.25*10 should round to -23, got %v", got[:2])
	}
}

func TestEncodeWidthAndEndian(t *testing.T) {
	le := schema.Message{Template: []schema.Field{
		{Key: "v", Scale: 1, Width: 4, Endian: schema.LittleEndian},
	}}
	be := schema.Message{Template: []schema.Field{
		{Key: "v", Scale: 1, Width: 4, Endian: schema.BigEndian},
	}}
	ctx := map[string]float64{"v": 0x01020304}

	leOut := Encode(le, ctx)
	if !bytes.Equal(leOut[:4], []byte{0x04, 0x03, 0x02, 0x01}) {
		t.Fatalf("little-endian mismatch: %v", leOut[:4])
	}
	beOut := Encode(be, ctx)
	if !bytes.Equal(beOut[:4], []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("big-endian mismatch: %v", beOut[:4])
	}

	beOut16 := Encode(schema.Message{Template: []schema.Field{
		{Key: "v", Scale: 1, Width: 2, Endian: schema.BigEndian},
	}}, map[string]float64{"v": 0x0102})
	if !bytes.Equal(beOut16[:2], []byte{0x01, 0x02}) {
		t.Fatalf("big-endian 16-bit mismatch: %v", beOut16[:2])
	}
}

func TestEncodeStopsAtEightBytes(t *testing.T) {
	fields := make([]schema.Field, 0, 5)
	for i := 0; i < 5; i++ {
		fields = append(fields, schema.Field{Const: i + 1, Scale: 1, Width: 2})
	}
	got := Encode(schema.Message{Template: fields}, nil)
	want := [PayloadLen]byte{1, 0, 2, 0, 3, 0, 4, 0}
	if got != want {
		t.Fatalf("payload mismatch: got=%v want=%v", got, want)
	}
}

func TestEncodeEmptyMessageIsAllZero(t *testing.T) {
	got := Encode(schema.Message{Name: "RECV_ONLY"}, nil)
	if got != ([PayloadLen]byte{}) {
		t.Fatalf("expected all-zero payload, got %v", got)
	}
}

func TestBuildCarriesFrameIdentity(t *testing.T) {
	msg := schema.Message{Name: "START", ID: 0x5E0001, Extended: true, Literal: []byte{0x01}}
	raw := Build(msg, nil)
	if raw.ID != 0x5E0001 || !raw.Extended {
		t.Fatalf("frame identity mismatch: %s", raw)
	}
	if len(raw.Data) != PayloadLen {
		t.Fatalf("expected %d-byte payload, got %d", PayloadLen, len(raw.Data))
	}
}
