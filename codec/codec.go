// Package codec serializes call payloads for the exchange file.
//
// The wire request line carries only a codec type token, so client and server
// agree on how to decode the out-of-band payload without the transport layer
// knowing anything about the serialization technology.
package codec

type CodecType byte

const (
	CodecTypeJSON CodecType = 0
	CodecTypeGob  CodecType = 1
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType // 0=JSON, 1=Gob
}

// GetCodec returns the codec for a wire type token.
// Unknown tokens fall back to gob, the highest-fidelity format.
func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &GobCodec{}
}
