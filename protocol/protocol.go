// Package protocol implements the two wire formats of the bridge.
//
// The in-band format is the request line of a minimal HTTP GET: the method
// name, codec type token, and exchange-file path joined by colons into a
// single addressable path. No request body is ever sent, so the server side
// needs only a single-purpose request-line parser instead of a full HTTP
// stack.
//
// The out-of-band format is the exchange file: a sequence of length-prefixed
// frames, one serialized value per frame. The receiver reads the fixed
// 10-byte header first to determine the body length, then reads exactly that
// many bytes.
//
// Frame format:
//
//	0      3  4  5  6         10
//	┌──────┬──┬──┬──┬─────────┬───────────────┐
//	│magic │v │ct│fk│ bodyLen │    body ...    │
//	│ mxc  │01│  │  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Magic number bytes: "mxc" (method exchange call).
// Used to reject exchange files that were truncated or written by something
// other than the bridge.
const (
	MagicNumber byte = 0x6d // 'm'
	MagicByte2  byte = 0x78 // 'x'
	MagicByte3  byte = 0x63 // 'c'
	Version     byte = 0x01
	HeaderSize  int  = 10 // 3 (magic) + 1 (version) + 1 (codec) + 1 (frameKind) + 4 (bodyLen)
)

// Reserved method names. These are handled by the bridge itself and never
// reach user code.
const (
	MethodShutdown = "SHUTDOWN_SERVER" // Triggers asynchronous graceful shutdown
	MethodLibPath  = "LIB_PATH"        // Returns the resolved path of the loaded library
)

// FrameKind identifies what a frame's body deserializes into.
type FrameKind byte

const (
	FrameArgs   FrameKind = 0 // []any — positional arguments
	FrameKwargs FrameKind = 1 // map[string]any — keyword arguments
	FrameResult FrameKind = 2 // message.Result — the single return value
	FrameError  FrameKind = 3 // message.ErrorRecord — failure in place of the result
)

// Header is the fixed 10-byte frame header.
type Header struct {
	CodecType byte      // Serialization format: 0=JSON, 1=Gob
	Kind      FrameKind // Args, Kwargs, Result, or Error
	BodyLen   uint32    // Body length in bytes
}

// WriteFrame writes a complete frame (header + body) to w.
// Frames in one exchange file are written by a single goroutine — the
// exchange slot carries at most one outstanding request — so no locking
// is needed here.
func WriteFrame(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize)

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.Kind)
	binary.BigEndian.PutUint32(buf[6:10], h.BodyLen)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	return nil
}

// ReadFrame reads a complete frame (header + body) from r.
// It validates the magic number, version, and frame kind. io.ReadFull
// guarantees exactly N bytes are read, so a truncated file surfaces as an
// error instead of a short body.
func ReadFrame(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("invalid magic number: %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported exchange format version: %d", headerBuf[3])
	}
	kind := headerBuf[5]
	if kind > byte(FrameError) {
		return nil, nil, fmt.Errorf("unsupported frame kind: %d", kind)
	}

	bodyLen := binary.BigEndian.Uint32(headerBuf[6:10])
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{
		CodecType: headerBuf[4],
		Kind:      FrameKind(kind),
		BodyLen:   bodyLen,
	}, body, nil
}

// EncodeRequestPath builds the GET path for a call:
//
//	/<method>:<codecType>:<exchangePath>
//
// The exchange path may itself contain colons (Windows drive letters); the
// decoder splits on the first two separators only.
func EncodeRequestPath(method string, codecType byte, exchangePath string) string {
	return "/" + method + ":" + strconv.Itoa(int(codecType)) + ":" + exchangePath
}

// DecodeRequestPath splits a GET path back into its three tokens.
// Reserved methods that carry no payload (MethodShutdown) arrive as a bare
// "/<method>" path with no separators; they decode with empty codec and path.
func DecodeRequestPath(path string) (method string, codecType byte, exchangePath string, err error) {
	request := strings.TrimPrefix(path, "/")
	if request == "" {
		return "", 0, "", fmt.Errorf("empty request path")
	}

	if !strings.Contains(request, ":") {
		return request, 0, "", nil
	}

	parts := strings.SplitN(request, ":", 3)
	if len(parts) != 3 {
		return "", 0, "", fmt.Errorf("malformed request path %q: want /method:codec:exchange", path)
	}
	if parts[0] == "" {
		return "", 0, "", fmt.Errorf("malformed request path %q: empty method name", path)
	}

	ct, err := strconv.Atoi(parts[1])
	if err != nil || ct < 0 || ct > 255 {
		return "", 0, "", fmt.Errorf("malformed request path %q: bad codec token %q", path, parts[1])
	}

	return parts[0], byte(ct), parts[2], nil
}
