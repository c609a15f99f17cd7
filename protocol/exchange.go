package protocol

import (
	"fmt"
	"os"

	"github.com/denfromufa/msl-loadlib/codec"
	"github.com/denfromufa/msl-loadlib/message"
)

// The exchange file is the single slot shared by one client/server pair.
// The client writes the call frames (args, kwargs), the server overwrites the
// file with the result frame (or an error frame in its place). Request and
// response share the slot, so one call never allocates a second temp file.

// WriteCall truncates the exchange file and writes the two call frames.
// Nil argument containers are written as empty ones: "no arguments" and
// "zero arguments" are the same call on the wire.
func WriteCall(path string, c codec.Codec, args []any, kwargs map[string]any) error {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeValue(f, c, FrameArgs, args); err != nil {
		return err
	}
	return writeValue(f, c, FrameKwargs, kwargs)
}

// ReadCall reads the two call frames back. The codec is taken from the frame
// headers, so the server does not need to be told the format out of band.
func ReadCall(path string) (args []any, kwargs map[string]any, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	h, body, err := ReadFrame(f)
	if err != nil {
		return nil, nil, err
	}
	if h.Kind != FrameArgs {
		return nil, nil, fmt.Errorf("exchange file: want args frame, got kind %d", h.Kind)
	}
	c := codec.GetCodec(codec.CodecType(h.CodecType))
	if err := c.Decode(body, &args); err != nil {
		return nil, nil, err
	}

	h, body, err = ReadFrame(f)
	if err != nil {
		return nil, nil, err
	}
	if h.Kind != FrameKwargs {
		return nil, nil, fmt.Errorf("exchange file: want kwargs frame, got kind %d", h.Kind)
	}
	if err := c.Decode(body, &kwargs); err != nil {
		return nil, nil, err
	}

	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return args, kwargs, nil
}

// WriteResult overwrites the exchange file with a single result frame.
func WriteResult(path string, c codec.Codec, value any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeValue(f, c, FrameResult, message.Result{Value: value})
}

// WriteError overwrites the exchange file with an error frame in place of
// the result.
func WriteError(path string, c codec.Codec, rec *message.ErrorRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeValue(f, c, FrameError, rec)
}

// ReadResult reads the response frame. Exactly one of (value, rec) is set,
// mirroring the two frame kinds a server may write back.
func ReadResult(path string) (value any, rec *message.ErrorRecord, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	h, body, err := ReadFrame(f)
	if err != nil {
		return nil, nil, err
	}
	c := codec.GetCodec(codec.CodecType(h.CodecType))

	switch h.Kind {
	case FrameResult:
		var res message.Result
		if err := c.Decode(body, &res); err != nil {
			return nil, nil, err
		}
		return res.Value, nil, nil
	case FrameError:
		rec = &message.ErrorRecord{}
		if err := c.Decode(body, rec); err != nil {
			return nil, nil, err
		}
		return nil, rec, nil
	default:
		return nil, nil, fmt.Errorf("exchange file: want result or error frame, got kind %d", h.Kind)
	}
}

func writeValue(f *os.File, c codec.Codec, kind FrameKind, v any) error {
	body, err := c.Encode(v)
	if err != nil {
		return err
	}
	h := Header{
		CodecType: byte(c.Type()),
		Kind:      kind,
		BodyLen:   uint32(len(body)),
	}
	return WriteFrame(f, &h, body)
}
