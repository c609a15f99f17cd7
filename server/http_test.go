package server

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connPair builds an in-memory connection and feeds raw bytes through it.
func roundTripRequest(t *testing.T, raw string) (string, error) {
	t.Helper()
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		client.Write([]byte(raw))
		client.Close()
	}()
	return readRequest(server)
}

func TestReadRequest(t *testing.T) {
	path, err := roundTripRequest(t,
		"GET /add:1:/tmp/msl-exchange-42 HTTP/1.1\r\nHost: 127.0.0.1:5000\r\nUser-Agent: Go-http-client/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "/add:1:/tmp/msl-exchange-42", path)
}

func TestReadRequestRejectsPost(t *testing.T) {
	_, err := roundTripRequest(t, "POST /add:1:/tmp/x HTTP/1.1\r\n\r\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported request method")
}

func TestReadRequestMalformedLine(t *testing.T) {
	_, err := roundTripRequest(t, "GET /only-two-fields\r\n\r\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed request line")
}

func TestWriteResponse(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go func() {
		writeResponse(server, statusNotImplemented, []byte("Panic: boom"))
		server.Close()
	}()

	buf := make([]byte, 512)
	var got strings.Builder
	for {
		n, err := client.Read(buf)
		got.Write(buf[:n])
		if err != nil {
			break
		}
	}

	raw := got.String()
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 501 Not Implemented\r\n"), "got %q", raw)
	assert.Contains(t, raw, "Content-Length: 11\r\n")
	assert.Contains(t, raw, "Connection: close\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nPanic: boom"))
}

func TestWriteResponseEmptyBody(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go func() {
		writeResponse(server, statusOK, nil)
		server.Close()
	}()

	buf := make([]byte, 512)
	var got strings.Builder
	for {
		n, err := client.Read(buf)
		got.Write(buf[:n])
		if err != nil {
			break
		}
	}

	raw := got.String()
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, raw, "Content-Length: 0\r\n")
	assert.NotContains(t, raw, "Content-Type")
}
