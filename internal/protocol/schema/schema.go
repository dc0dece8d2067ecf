// Package schema compiles the raw messages config into the immutable message
// schema used by the encoder and dispatcher. Compilation validates every
// entry exhaustively so the hot path never re-checks types.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ametov/acctl/internal/config"
)

// Built-in inbound signature defaults, applied when the well-known config
// keys are missing or carry an unparseable id.
const (
	DefaultTelemetryID uint32 = 0x5E0100
	DefaultInverterID  uint32 = 0x5E0200

	TelemetryMinLen = 8
	InverterMinLen  = 3
)

const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF
)

// Endian selects the byte order of a multi-byte field.
type Endian uint8

const (
	LittleEndian Endian = iota
	BigEndian
)

// Field is one encodable unit of a templated message. An empty Key means the
// field is a constant carrying Const.
type Field struct {
	Key    string
	Const  int
	Scale  float64
	Width  int // 1, 2, or 4
	Endian Endian
}

// Message is one named outbound (or inbound) message definition. Literal and
// Template are mutually exclusive; both nil is legal for receive-only keys.
type Message struct {
	Name     string
	ID       uint32
	Extended bool
	Literal  []byte
	Template []Field
}

// Signature identifies one inbound telemetry channel: exact id and extended
// flag, minimum payload length.
type Signature struct {
	ID       uint32
	Extended bool
	MinLen   int
}

// Matches reports whether the given frame identity satisfies the signature.
func (s Signature) Matches(id uint32, extended bool, payloadLen int) bool {
	return id == s.ID && extended == s.Extended && payloadLen >= s.MinLen
}

// Schema is the compiled, immutable message set plus the two inbound channel
// signatures.
type Schema struct {
	Messages  map[string]Message
	Telemetry Signature
	Inverter  Signature
}

// EntryError reports one invalid message entry.
type EntryError struct {
	Key    string
	Reason string
}

func (e EntryError) Error() string {
	return fmt.Sprintf("schema: message %s: %s", e.Key, e.Reason)
}

// ErrUnknownMessage is returned by Lookup for keys absent from the config.
var ErrUnknownMessage = errors.New("schema: unknown message key")

// Lookup returns the named message definition.
func (s Schema) Lookup(key string) (Message, error) {
	msg, ok := s.Messages[key]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownMessage, key)
	}
	return msg, nil
}

// Compile validates every message entry independently and builds the schema.
// Invalid entries are reported individually through the joined error; valid
// entries are still present in the returned schema so tooling can report
// both. A non-nil error is fatal to a connection attempt.
func Compile(cfg config.Config) (Schema, error) {
	out := Schema{
		Messages:  make(map[string]Message, len(cfg.Messages)),
		Telemetry: Signature{ID: DefaultTelemetryID, Extended: true, MinLen: TelemetryMinLen},
		Inverter:  Signature{ID: DefaultInverterID, Extended: true, MinLen: InverterMinLen},
	}

	keys := make([]string, 0, len(cfg.Messages))
	for key := range cfg.Messages {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		msg, err := compileMessage(key, cfg.Messages[key])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out.Messages[key] = msg
	}

	if telem, ok := out.Messages[config.KeyTelemetry]; ok {
		out.Telemetry.ID = telem.ID
		out.Telemetry.Extended = telem.Extended
	}
	if inv, ok := out.Messages[config.KeyInverterTelemetry]; ok {
		out.Inverter.ID = inv.ID
		out.Inverter.Extended = inv.Extended
	}

	return out, errors.Join(errs...)
}

func compileMessage(key string, raw config.MessageConfig) (Message, error) {
	wellKnown := key == config.KeyTelemetry || key == config.KeyInverterTelemetry

	extended := wellKnown
	if raw.Extended != nil {
		extended = *raw.Extended
	}

	id, err := parseID(raw.ID)
	if err != nil {
		if !wellKnown {
			return Message{}, EntryError{Key: key, Reason: err.Error()}
		}
		// Benign fallback applies to the two inbound channels only; the
		// extended flag keeps its configured (or defaulted) value.
		id = DefaultTelemetryID
		if key == config.KeyInverterTelemetry {
			id = DefaultInverterID
		}
	}
	if extended && id > maxExtID {
		return Message{}, EntryError{Key: key, Reason: fmt.Sprintf("id 0x%X exceeds 29 bits", id)}
	}
	if !extended && id > maxStdID {
		return Message{}, EntryError{Key: key, Reason: fmt.Sprintf("id 0x%X exceeds 11 bits for a standard frame", id)}
	}

	msg := Message{Name: key, ID: id, Extended: extended}

	if raw.Data != nil && raw.DataTemplate != nil {
		return Message{}, EntryError{Key: key, Reason: "data and data_template are mutually exclusive"}
	}

	switch {
	case raw.Data != nil:
		msg.Literal = make([]byte, len(raw.Data))
		for i, v := range raw.Data {
			msg.Literal[i] = byte(v & 0xFF)
		}
	case raw.DataTemplate != nil:
		msg.Template = make([]Field, 0, len(raw.DataTemplate))
		for i, item := range raw.DataTemplate {
			field, err := compileField(item)
			if err != nil {
				return Message{}, EntryError{Key: key, Reason: fmt.Sprintf("data_template[%d]: %v", i, err)}
			}
			msg.Template = append(msg.Template, field)
		}
	}
	return msg, nil
}

func compileField(item any) (Field, error) {
	field := Field{Scale: 1.0, Width: 1, Endian: LittleEndian}

	if n, ok := asInt(item); ok {
		field.Const = int(n)
		return field, nil
	}
	table, ok := item.(map[string]any)
	if !ok {
		return Field{}, fmt.Errorf("expected integer or field table, got %T", item)
	}

	if v, present := table["field"]; present {
		name, ok := v.(string)
		if !ok || strings.TrimSpace(name) == "" {
			return Field{}, fmt.Errorf("field name must be a non-empty string")
		}
		field.Key = name
	} else if v, present := table["value"]; present {
		n, ok := asInt(v)
		if !ok {
			return Field{}, fmt.Errorf("value must be an integer")
		}
		field.Const = int(n)
	}

	if v, present := table["scale"]; present {
		f, ok := asFloat(v)
		if !ok {
			return Field{}, fmt.Errorf("scale must be numeric")
		}
		field.Scale = f
	}
	if v, present := table["bytes"]; present {
		n, ok := asInt(v)
		if !ok {
			return Field{}, fmt.Errorf("bytes must be an integer")
		}
		switch n {
		case 1, 2, 4:
			field.Width = int(n)
		default:
			return Field{}, fmt.Errorf("unsupported width %d (want 1, 2, or 4)", n)
		}
	}
	if v, present := table["endian"]; present {
		s, ok := v.(string)
		if !ok {
			return Field{}, fmt.Errorf("endian must be a string")
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "le", "little":
			field.Endian = LittleEndian
		case "be", "big":
			field.Endian = BigEndian
		default:
			return Field{}, fmt.Errorf("unsupported endian %q", s)
		}
	}
	return field, nil
}

// parseID accepts a TOML integer or a decimal/hex-prefixed string.
func parseID(raw any) (uint32, error) {
	switch v := raw.(type) {
	case nil:
		return 0, errors.New("missing id")
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 0, 32)
		if err != nil {
			return 0, fmt.Errorf("unparseable id %q", v)
		}
		return uint32(n), nil
	default:
		n, ok := asInt(raw)
		if !ok || n < 0 || n > 0xFFFFFFFF {
			return 0, fmt.Errorf("unparseable id %v", raw)
		}
		return uint32(n), nil
	}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
