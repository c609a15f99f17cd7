package codec

import (
	"bytes"
	"encoding/json"
)

// JSONCodec serializes payloads with encoding/json.
// Pros: human-readable, debuggable with any text editor, cross-language.
// Cons: numeric types collapse (an int argument decodes as json.Number),
// so round trips are not bit-for-bit. Use GobCodec when fidelity matters.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode uses json.Number for untyped numbers so large integers survive
// the trip instead of silently losing precision in a float64.
func (c *JSONCodec) Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
