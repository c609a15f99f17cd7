package protocol

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/denfromufa/msl-loadlib/codec"
	"github.com/denfromufa/msl-loadlib/message"
)

func exchangePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "exchange.bin")
}

func TestWriteReadCall(t *testing.T) {
	path := exchangePath(t)
	c := codec.GetCodec(codec.CodecTypeGob)

	args := []any{int(3), "x", []float64{1.5, 2.5}}
	kwargs := map[string]any{"scale": float64(0.5)}

	if err := WriteCall(path, c, args, kwargs); err != nil {
		t.Fatalf("WriteCall failed: %v", err)
	}
	gotArgs, gotKwargs, err := ReadCall(path)
	if err != nil {
		t.Fatalf("ReadCall failed: %v", err)
	}
	if !reflect.DeepEqual(gotArgs, args) {
		t.Errorf("args mismatch: got %#v, want %#v", gotArgs, args)
	}
	if !reflect.DeepEqual(gotKwargs, kwargs) {
		t.Errorf("kwargs mismatch: got %#v, want %#v", gotKwargs, kwargs)
	}
}

func TestWriteReadCallNilContainers(t *testing.T) {
	path := exchangePath(t)
	c := codec.GetCodec(codec.CodecTypeGob)

	// Nil args/kwargs normalize to empty on the wire
	if err := WriteCall(path, c, nil, nil); err != nil {
		t.Fatalf("WriteCall failed: %v", err)
	}
	args, kwargs, err := ReadCall(path)
	if err != nil {
		t.Fatalf("ReadCall failed: %v", err)
	}
	if args == nil || len(args) != 0 {
		t.Errorf("expected empty args, got %#v", args)
	}
	if kwargs == nil || len(kwargs) != 0 {
		t.Errorf("expected empty kwargs, got %#v", kwargs)
	}
}

func TestCallCodecFromFrameHeader(t *testing.T) {
	path := exchangePath(t)

	// The reader takes the codec from the frame header, not from a parameter
	if err := WriteCall(path, codec.GetCodec(codec.CodecTypeJSON), []any{"a"}, nil); err != nil {
		t.Fatalf("WriteCall failed: %v", err)
	}
	args, _, err := ReadCall(path)
	if err != nil {
		t.Fatalf("ReadCall failed: %v", err)
	}
	if len(args) != 1 || args[0] != "a" {
		t.Errorf("args mismatch: got %#v", args)
	}
}

func TestWriteReadResult(t *testing.T) {
	path := exchangePath(t)
	c := codec.GetCodec(codec.CodecTypeGob)

	if err := WriteResult(path, c, int64(-1002)); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}
	value, rec, err := ReadResult(path)
	if err != nil {
		t.Fatalf("ReadResult failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("unexpected error record: %+v", rec)
	}
	if v, ok := value.(int64); !ok || v != -1002 {
		t.Errorf("value mismatch: got %v (%T), want int64 -1002", value, value)
	}
}

func TestWriteReadError(t *testing.T) {
	path := exchangePath(t)
	c := codec.GetCodec(codec.CodecTypeGob)

	want := &message.ErrorRecord{
		File: "handlers.go", Line: 12, Func: "demo.divide",
		Kind: "DivisionByZero", Message: "denominator is zero",
	}
	if err := WriteError(path, c, want); err != nil {
		t.Fatalf("WriteError failed: %v", err)
	}
	value, rec, err := ReadResult(path)
	if err != nil {
		t.Fatalf("ReadResult failed: %v", err)
	}
	if value != nil {
		t.Errorf("unexpected value alongside error: %v", value)
	}
	if rec == nil || *rec != *want {
		t.Errorf("record mismatch: got %+v, want %+v", rec, want)
	}
}

func TestResultOverwritesCall(t *testing.T) {
	path := exchangePath(t)
	c := codec.GetCodec(codec.CodecTypeGob)

	// Request and response reuse the same slot: the result frame must fully
	// replace the call frames, not append after them
	if err := WriteCall(path, c, []any{1, 2, 3}, map[string]any{"k": "v"}); err != nil {
		t.Fatalf("WriteCall failed: %v", err)
	}
	if err := WriteResult(path, c, "done"); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}
	value, rec, err := ReadResult(path)
	if err != nil {
		t.Fatalf("ReadResult failed: %v", err)
	}
	if rec != nil || value != "done" {
		t.Errorf("slot not overwritten: value=%v rec=%+v", value, rec)
	}
}
