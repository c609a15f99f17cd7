// Package client implements the requesting half of the bridge: it spawns the
// server executable as a child process, discovers its port, and performs the
// call round trips through the shared exchange file.
//
// One Client owns one child server and one exchange slot. Calls are
// serialized per client — the exchange slot assumes a single outstanding
// request — but any number of independent clients can coexist on the same
// host because every server picks its own port.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/denfromufa/msl-loadlib/codec"
	"github.com/denfromufa/msl-loadlib/message"
	"github.com/denfromufa/msl-loadlib/protocol"
)

var (
	ErrConnectTimeout = errors.New("timed out waiting for the server to accept connections")
	ErrProcessExited  = errors.New("server process exited before accepting connections")
	ErrServerStopped  = errors.New("the server has been shut down")
)

// probeInterval paces the liveness probes during connect.
const probeInterval = 20 * time.Millisecond

// RemoteError is the local failure synthesized from a server-side
// ErrorRecord. It preserves the remote kind and message and carries the
// remote source location as metadata — it is always a controlled failure
// translation, never a reinterpreted crash.
type RemoteError struct {
	Record *message.ErrorRecord
}

func (e *RemoteError) Error() string {
	return "remote call failed: " + strings.TrimSpace(e.Record.Error())
}

// Kind returns the remote exception kind, e.g. "MethodNotFound".
func (e *RemoteError) Kind() string { return e.Record.Kind }

// Location returns the remote source location of the failure.
func (e *RemoteError) Location() (file string, line int, fn string) {
	return e.Record.File, e.Record.Line, e.Record.Func
}

// Client manages one spawned server process and the exchange slot shared
// with it.
type Client struct {
	host     string
	port     int
	addr     string
	exchange string
	codec    codec.Codec
	http     *http.Client
	logger   *zap.Logger

	cmd     *exec.Cmd
	done    chan struct{} // closed when the child exits
	waitErr error

	mu     sync.Mutex // serializes calls: one outstanding request per client
	active bool
}

// Connect spawns the server executable and blocks until it answers a
// liveness probe or the timeout elapses. With the default port 0 the server
// picks a free port and announces it on stdout as a PORT=<n> line, which is
// how concurrent clients on one host avoid collisions.
func Connect(exePath string, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := os.Stat(exePath); err != nil {
		return nil, fmt.Errorf("cannot find the server executable %s: %w", exePath, err)
	}

	args := []string{"-host", cfg.host, "-port", strconv.Itoa(cfg.port)}
	if cfg.quiet {
		args = append(args, "-quiet")
	}
	if cfg.libPath != "" {
		args = append(args, "-lib", cfg.libPath, "-libtype", cfg.libType)
	}
	args = append(args, cfg.extraArgs...)

	cmd := exec.Command(exePath, args...)
	cmd.Stderr = os.Stderr
	if len(cfg.env) > 0 {
		cmd.Env = append(os.Environ(), cfg.env...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning %s: %w", exePath, err)
	}

	c := &Client{
		host:   cfg.host,
		port:   cfg.port,
		codec:  cfg.codec,
		http:   &http.Client{},
		logger: cfg.logger,
		cmd:    cmd,
		done:   make(chan struct{}),
	}
	portCh := make(chan int, 1)
	go c.watchChild(stdout, portCh)

	deadline := time.Now().Add(cfg.timeout)

	if c.port == 0 {
		select {
		case c.port = <-portCh:
		case <-c.done:
			return nil, fmt.Errorf("%w: %v", ErrProcessExited, c.waitErr)
		case <-time.After(cfg.timeout):
			cmd.Process.Kill()
			return nil, fmt.Errorf("%w: no PORT handshake within %s", ErrConnectTimeout, cfg.timeout)
		}
	}
	c.addr = net.JoinHostPort(c.host, strconv.Itoa(c.port))

	if err := c.probe(deadline, cfg.timeout); err != nil {
		cmd.Process.Kill()
		return nil, err
	}

	if err := c.createExchange(); err != nil {
		cmd.Process.Kill()
		return nil, err
	}

	c.active = true
	c.logger.Debug("connected", zap.String("addr", c.addr), zap.String("exchange", c.exchange))
	return c, nil
}

// Attach connects to an already running server without spawning a child.
// Useful for debugging a server started by hand; Shutdown still sends the
// sentinel but has no process to wait for.
func Attach(host string, port int, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Client{
		host:   host,
		port:   port,
		addr:   net.JoinHostPort(host, strconv.Itoa(port)),
		codec:  cfg.codec,
		http:   &http.Client{},
		logger: cfg.logger,
	}
	if err := c.probe(time.Now().Add(cfg.timeout), cfg.timeout); err != nil {
		return nil, err
	}
	if err := c.createExchange(); err != nil {
		return nil, err
	}
	c.active = true
	return c, nil
}

// probe dials the server until it accepts or the deadline passes. There is
// no retry loop beyond this: once connected, a call either completes or
// fails — a blocking native call cannot safely be interrupted from outside.
func (c *Client) probe(deadline time.Time, timeout time.Duration) error {
	for {
		conn, err := net.DialTimeout("tcp", c.addr, probeInterval)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-c.done:
			return fmt.Errorf("%w: %v", ErrProcessExited, c.waitErr)
		default:
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: cannot connect to %s within %s", ErrConnectTimeout, c.addr, timeout)
		}
		time.Sleep(probeInterval)
	}
}

// createExchange creates the pair's exchange slot: a fresh unique temp file,
// exclusively owned by this client/server pair and removed on Shutdown.
func (c *Client) createExchange() error {
	f, err := os.CreateTemp("", "msl-exchange-*")
	if err != nil {
		return fmt.Errorf("creating exchange file: %w", err)
	}
	c.exchange = f.Name()
	return f.Close()
}

// Port returns the port of the connected server.
func (c *Client) Port() int { return c.port }

// Call invokes a remote method with positional arguments.
func (c *Client) Call(method string, args ...any) (any, error) {
	return c.CallKw(method, args, nil)
}

// CallKw invokes a remote method with positional and keyword arguments.
// On a failure status the remote ErrorRecord is re-raised locally as a
// *RemoteError.
func (c *Client) CallKw(method string, args []any, kwargs map[string]any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return nil, ErrServerStopped
	}
	if strings.Contains(method, ":") {
		return nil, fmt.Errorf("invalid method name %q: ':' is the request separator", method)
	}

	if err := protocol.WriteCall(c.exchange, c.codec, args, kwargs); err != nil {
		return nil, fmt.Errorf("writing call payload: %w", err)
	}

	status, body, err := c.get(protocol.EncodeRequestPath(method, byte(c.codec.Type()), c.exchange))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.remoteFailure(status, body)
	}

	value, rec, err := protocol.ReadResult(c.exchange)
	if err != nil {
		return nil, fmt.Errorf("reading result payload: %w", err)
	}
	if rec != nil {
		return nil, &RemoteError{Record: rec}
	}
	return value, nil
}

// LibPath asks the server which library binary it actually loaded, without
// invoking the library itself.
func (c *Client) LibPath() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return "", ErrServerStopped
	}

	status, body, err := c.get(protocol.EncodeRequestPath(
		protocol.MethodLibPath, byte(c.codec.Type()), c.exchange))
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", c.remoteFailure(status, body)
	}

	value, rec, err := protocol.ReadResult(c.exchange)
	if err != nil {
		return "", err
	}
	if rec != nil {
		return "", &RemoteError{Record: rec}
	}
	path, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected library path payload %T", value)
	}
	return path, nil
}

// Shutdown sends the shutdown sentinel, waits for the child to exit (bounded,
// then force-terminates), and removes the exchange slot. Calling it again
// after the first call is a no-op.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return nil
	}
	c.active = false

	// Best effort: the server replies to the sentinel before it stops, but a
	// dead server should not prevent cleanup.
	_, _, _ = c.get("/" + protocol.MethodShutdown)

	var err error
	if c.cmd != nil {
		select {
		case <-c.done:
		case <-time.After(5 * time.Second):
			c.cmd.Process.Kill()
			<-c.done
			err = errors.New("server did not exit after shutdown request; killed")
		}
	}

	os.Remove(c.exchange)
	c.logger.Debug("shut down", zap.String("addr", c.addr))
	return err
}

// get issues one minimal GET. The URL is built with an opaque path because
// the request tokens (colons, platform paths) must reach the server verbatim,
// not URL-escaped.
func (c *Client) get(path string) (status int, body []byte, err error) {
	req := &http.Request{
		Method: http.MethodGet,
		URL:    &url.URL{Scheme: "http", Host: c.addr, Opaque: path},
		Host:   c.addr,
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// remoteFailure reconstructs a failure from a non-2xx response: the
// structured record in the exchange slot when present, else the plain-text
// body.
func (c *Client) remoteFailure(status int, body []byte) error {
	if _, rec, err := protocol.ReadResult(c.exchange); err == nil && rec != nil {
		return &RemoteError{Record: rec}
	}
	return &RemoteError{Record: &message.ErrorRecord{
		Kind:    "RemoteFailure",
		Message: fmt.Sprintf("HTTP %d: %s", status, strings.TrimSpace(string(body))),
	}}
}

// watchChild drains the child's stdout for the handshake and only then reaps
// the process. cmd.Wait closes the stdout pipe, so it must not run until the
// scanner has consumed everything the child wrote — a child that announces
// its port and exits immediately would otherwise lose the line.
func (c *Client) watchChild(stdout io.Reader, portCh chan<- int) {
	scanHandshake(stdout, portCh)
	c.waitErr = c.cmd.Wait()
	close(c.done)
}

// scanHandshake watches the child's stdout for the PORT=<n> line and relays
// everything else to stderr, keeping the parent's stdout clean.
func scanHandshake(r io.Reader, portCh chan<- int) {
	scanner := bufio.NewScanner(r)
	announced := false
	for scanner.Scan() {
		line := scanner.Text()
		if !announced {
			if rest, ok := strings.CutPrefix(line, "PORT="); ok {
				if port, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
					portCh <- port
					announced = true
					continue
				}
			}
		}
		fmt.Fprintln(os.Stderr, line)
	}
}

// ServerVersion spawns the server executable with -version and returns the
// first line of output. It runs a short-lived separate process so the
// version can be inspected before any server is started.
func ServerVersion(exePath string) (string, error) {
	out, err := exec.Command(exePath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("querying server version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// Interactive launches the server executable's interactive console attached
// to the current terminal. Best-effort diagnostics.
func Interactive(exePath string, extraArgs ...string) error {
	cmd := exec.Command(exePath, append([]string{"-interactive"}, extraArgs...)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
