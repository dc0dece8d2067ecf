// Package frame holds the raw CAN frame value type and the 8-byte payload
// encoder for schema-templated messages.
package frame

import (
	"fmt"
	"math"
	"strings"

	"github.com/ametov/acctl/internal/protocol/schema"
)

// PayloadLen is the fixed outbound payload size. Encoding truncates at this
// length and zero-pads short results; callers rely on fixed-length frames.
const PayloadLen = 8

// Raw is one CAN frame as seen at the transport boundary.
type Raw struct {
	ID       uint32
	Extended bool
	Data     []byte
}

func (r Raw) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id=0x%X ext=%t len=%d data=", r.ID, r.Extended, len(r.Data))
	for i, v := range r.Data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// Encode produces the fixed 8-byte payload for a message. Literal bytes are
// used verbatim; template fields resolve their value from ctx (constants use
// their compiled value, absent keys encode as 0), multiply by scale and round
// half away from zero, then serialize per width and endianness. Emission
// stops once 8 bytes exist; the result is always exactly 8 bytes.
func Encode(msg schema.Message, ctx map[string]float64) [PayloadLen]byte {
	var out [PayloadLen]byte
	if msg.Literal != nil {
		copy(out[:], msg.Literal)
		return out
	}

	buf := make([]byte, 0, PayloadLen+3)
	for _, field := range msg.Template {
		val := float64(field.Const)
		if field.Key != "" {
			val = ctx[field.Key]
		}
		num := int64(math.Round(val * field.Scale))

		switch field.Width {
		case 2:
			b0, b1 := byte(num), byte(num>>8)
			if field.Endian == schema.BigEndian {
				buf = append(buf, b1, b0)
			} else {
				buf = append(buf, b0, b1)
			}
		case 4:
			b0, b1, b2, b3 := byte(num), byte(num>>8), byte(num>>16), byte(num>>24)
			if field.Endian == schema.BigEndian {
				buf = append(buf, b3, b2, b1, b0)
			} else {
				buf = append(buf, b0, b1, b2, b3)
			}
		default:
			buf = append(buf, byte(num))
		}
		if len(buf) >= PayloadLen {
			break
		}
	}
	copy(out[:], buf)
	return out
}

// Build encodes the message payload and wraps it with the frame identity.
func Build(msg schema.Message, ctx map[string]float64) Raw {
	payload := Encode(msg, ctx)
	return Raw{ID: msg.ID, Extended: msg.Extended, Data: payload[:]}
}
