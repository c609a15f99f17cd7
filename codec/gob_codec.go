package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/denfromufa/msl-loadlib/message"
)

// GobCodec serializes payloads with encoding/gob, Go's native binary format.
// It preserves concrete Go types across the process boundary — an int sent
// by the client arrives as an int in the handler — which makes it the
// default codec for Go-to-Go bridges.
//
// Gob transmits interface-typed values only for registered concrete types.
// The common scalar and container types are registered here; callers whose
// handlers exchange custom struct types must register them on both sides
// with RegisterType before the first call.
type GobCodec struct{}

func init() {
	for _, v := range []any{
		int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0),
		false, "",
		[]byte(nil), []any(nil), []string(nil), []int(nil), []float64(nil),
		map[string]any(nil), map[string]string(nil),
		message.ErrorRecord{},
	} {
		gob.Register(v)
	}
}

// RegisterType makes a concrete type transmittable inside Args, Kwargs, or a
// return value. It must be called in both the client and server processes.
func RegisterType(v any) {
	gob.Register(v)
}

func (c *GobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *GobCodec) Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (c *GobCodec) Type() CodecType {
	return CodecTypeGob
}
