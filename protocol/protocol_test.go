package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteReadFrame(t *testing.T) {
	// Prepare header and body
	header := Header{
		CodecType: 1,
		Kind:      FrameResult,
		BodyLen:   11,
	}
	body := []byte("hello world")

	// Write frame into buffer
	var buf bytes.Buffer
	if err := WriteFrame(&buf, &header, body); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	// Read frame back from buffer
	decodedHeader, decodedBody, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	// Verify decoded header
	if decodedHeader.CodecType != header.CodecType {
		t.Errorf("CodecType mismatch: got %d, want %d", decodedHeader.CodecType, header.CodecType)
	}
	if decodedHeader.Kind != header.Kind {
		t.Errorf("Kind mismatch: got %d, want %d", decodedHeader.Kind, header.Kind)
	}
	if decodedHeader.BodyLen != header.BodyLen {
		t.Errorf("BodyLen mismatch: got %d, want %d", decodedHeader.BodyLen, header.BodyLen)
	}

	// Verify decoded body
	if !bytes.Equal(decodedBody, body) {
		t.Errorf("Body mismatch: got %s, want %s", string(decodedBody), string(body))
	}
}

func TestReadFrameInvalidMagic(t *testing.T) {
	// Prepare a frame with a wrong magic number
	invalidFrame := []byte{0x00, 0x00, 0x00, Version, 1, byte(FrameArgs), 0x00, 0x00, 0x00, 0x0B}
	var buf bytes.Buffer
	buf.Write(invalidFrame)
	buf.Write([]byte("hello world"))

	// ReadFrame should fail with an invalid magic number error
	_, _, err := ReadFrame(&buf)
	if err == nil {
		t.Fatal("Expected error for invalid magic number, but got nil")
	}
	if !strings.Contains(err.Error(), "invalid magic number") {
		t.Errorf("Error message should contain 'invalid magic number', instead: %v", err)
	}
}

func TestReadFrameInvalidVersion(t *testing.T) {
	// Correct magic, wrong version
	invalidFrame := []byte{MagicNumber, MagicByte2, MagicByte3, 0xFF, 1, byte(FrameArgs), 0, 0, 0, 0}
	var buf bytes.Buffer
	buf.Write(invalidFrame)

	_, _, err := ReadFrame(&buf)
	if err == nil {
		t.Fatal("Expected error for unsupported version, but got nil")
	}
	if !strings.Contains(err.Error(), "unsupported exchange format version") {
		t.Errorf("Error message should contain 'unsupported exchange format version', instead: %v", err)
	}
}

func TestReadFrameInvalidKind(t *testing.T) {
	invalidFrame := []byte{MagicNumber, MagicByte2, MagicByte3, Version, 1, 0x7F, 0, 0, 0, 0}
	var buf bytes.Buffer
	buf.Write(invalidFrame)

	_, _, err := ReadFrame(&buf)
	if err == nil {
		t.Fatal("Expected error for unsupported frame kind, but got nil")
	}
	if !strings.Contains(err.Error(), "unsupported frame kind") {
		t.Errorf("Error message should contain 'unsupported frame kind', instead: %v", err)
	}
}

func TestReadFrameTruncatedBody(t *testing.T) {
	// Header promises 11 bytes, buffer only holds 5
	header := Header{CodecType: 1, Kind: FrameArgs, BodyLen: 11}
	var full bytes.Buffer
	if err := WriteFrame(&full, &header, []byte("hello world")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	truncated := bytes.NewBuffer(full.Bytes()[:HeaderSize+5])

	_, _, err := ReadFrame(truncated)
	if err == nil {
		t.Fatal("Expected error for truncated body, but got nil")
	}
}

func TestEncodeDecodeRequestPath(t *testing.T) {
	path := EncodeRequestPath("multiply", 1, "/tmp/msl-exchange-1234")
	if path != "/multiply:1:/tmp/msl-exchange-1234" {
		t.Errorf("unexpected encoded path: %s", path)
	}

	method, codecType, exchange, err := DecodeRequestPath(path)
	if err != nil {
		t.Fatalf("DecodeRequestPath failed: %v", err)
	}
	if method != "multiply" {
		t.Errorf("method mismatch: got %s, want multiply", method)
	}
	if codecType != 1 {
		t.Errorf("codec mismatch: got %d, want 1", codecType)
	}
	if exchange != "/tmp/msl-exchange-1234" {
		t.Errorf("exchange mismatch: got %s", exchange)
	}
}

func TestDecodeRequestPathWindowsDriveLetter(t *testing.T) {
	// The exchange path keeps its own colons: only the first two separate
	method, codecType, exchange, err := DecodeRequestPath(`/scale:0:C:\Temp\exchange.bin`)
	if err != nil {
		t.Fatalf("DecodeRequestPath failed: %v", err)
	}
	if method != "scale" || codecType != 0 {
		t.Errorf("token mismatch: got %s/%d", method, codecType)
	}
	if exchange != `C:\Temp\exchange.bin` {
		t.Errorf("exchange mismatch: got %s", exchange)
	}
}

func TestDecodeRequestPathBareReservedMethod(t *testing.T) {
	// Sentinel requests carry no payload tokens
	method, _, exchange, err := DecodeRequestPath("/" + MethodShutdown)
	if err != nil {
		t.Fatalf("DecodeRequestPath failed: %v", err)
	}
	if method != MethodShutdown {
		t.Errorf("method mismatch: got %s, want %s", method, MethodShutdown)
	}
	if exchange != "" {
		t.Errorf("expected empty exchange path, got %s", exchange)
	}
}

func TestDecodeRequestPathMalformed(t *testing.T) {
	cases := []string{
		"/",
		"/:1:/tmp/x",
		"/scale:notanumber:/tmp/x",
		"/scale:999:/tmp/x",
	}
	for _, path := range cases {
		if _, _, _, err := DecodeRequestPath(path); err == nil {
			t.Errorf("expected error for %q, got nil", path)
		}
	}
}
