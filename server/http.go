package server

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strings"
)

// The bridge needs exactly one HTTP feature: a GET request line. Requests
// never carry a body — the payload travels through the exchange file — so a
// single-purpose parser replaces a full HTTP stack on the server side.
// Responses are plain HTTP/1.1 with Connection: close, which any standard
// HTTP client (including the bridge's own) understands.

const (
	statusOK             = 200
	statusBadRequest     = 400
	statusInternal       = 500
	statusNotImplemented = 501 // failure during dispatch, body carries the error record
)

var statusText = map[int]string{
	statusOK:             "OK",
	statusBadRequest:     "Bad Request",
	statusInternal:       "Internal Server Error",
	statusNotImplemented: "Not Implemented",
}

// readRequest parses the request line and drains the headers. Only GET is
// accepted; the returned string is the raw request path.
func readRequest(conn net.Conn) (string, error) {
	r := bufio.NewReader(conn)

	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading request line: %w", err)
	}
	parts := strings.Fields(line)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return "", fmt.Errorf("malformed request line %q", strings.TrimSpace(line))
	}
	if parts[0] != "GET" {
		return "", fmt.Errorf("unsupported request method %q", parts[0])
	}

	// Drain headers until the blank line so the connection is clean before
	// the response goes out.
	for {
		h, err := r.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("reading headers: %w", err)
		}
		if h == "\r\n" || h == "\n" {
			break
		}
	}

	return parts[1], nil
}

// writeResponse writes a complete HTTP response in one conn.Write so the
// status line and body never interleave with anything else.
func writeResponse(conn net.Conn, status int, body []byte) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, statusText[status])
	if len(body) > 0 {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	}
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(body))
	buf.WriteString("Connection: close\r\n\r\n")
	buf.Write(body)

	_, err := conn.Write(buf.Bytes())
	return err
}
