package client

import (
	"io"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denfromufa/msl-loadlib/message"
)

func TestRemoteErrorMessage(t *testing.T) {
	err := &RemoteError{Record: &message.ErrorRecord{
		File:    "/src/handlers.go",
		Line:    9,
		Func:    "divide",
		Kind:    "DivisionByZero",
		Message: "denominator is zero",
	}}

	assert.True(t, len(err.Error()) > 0)
	assert.Contains(t, err.Error(), "remote call failed")
	assert.Contains(t, err.Error(), "DivisionByZero: denominator is zero")
	assert.Equal(t, "DivisionByZero", err.Kind())

	file, line, fn := err.Location()
	assert.Equal(t, "/src/handlers.go", file)
	assert.Equal(t, 9, line)
	assert.Equal(t, "divide", fn)
}

func TestScanHandshake(t *testing.T) {
	r, w := io.Pipe()
	portCh := make(chan int, 1)
	go scanHandshake(r, portCh)

	go func() {
		io.WriteString(w, "some startup banner\n")
		io.WriteString(w, "PORT=54321\n")
		io.WriteString(w, "PORT=99999\n") // only the first announcement counts
		w.Close()
	}()

	select {
	case port := <-portCh:
		assert.Equal(t, 54321, port)
	case <-time.After(2 * time.Second):
		t.Fatal("handshake line was not picked up")
	}

	select {
	case port := <-portCh:
		t.Fatalf("unexpected second announcement: %d", port)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchChildDrainsHandshakeBeforeReap(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	// A child that announces its port and exits immediately: the handshake
	// line must be consumed before the process is reaped, never lost to the
	// pipe closing under the scanner.
	cmd := exec.Command("/bin/sh", "-c", "echo PORT=45678")
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	c := &Client{cmd: cmd, done: make(chan struct{})}
	portCh := make(chan int, 1)
	go c.watchChild(stdout, portCh)

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("child was never reaped")
	}

	// done is closed only after the scanner finished, so the port is here
	select {
	case port := <-portCh:
		assert.Equal(t, 45678, port)
	default:
		t.Fatal("handshake line was lost")
	}
	require.NoError(t, c.waitErr)
}

func TestDefaultOptions(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "127.0.0.1", cfg.host)
	assert.Equal(t, 0, cfg.port, "port 0 lets every server pick its own")
	assert.Equal(t, 10*time.Second, cfg.timeout)
	assert.True(t, cfg.quiet)
	require.NotNil(t, cfg.codec)
	require.NotNil(t, cfg.logger)
}

func TestCallRejectsColonInMethod(t *testing.T) {
	c := &Client{active: true}
	_, err := c.Call("bad:method")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "separator")
}

func TestAttachRefusedWhenNothingListens(t *testing.T) {
	// Port 1 on loopback is essentially never bound
	_, err := Attach("127.0.0.1", 1, WithTimeout(200*time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectTimeout)
}
