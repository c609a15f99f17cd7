// Package server implements the hosting half of the bridge: a process that
// owns exactly one loaded shared library and serves method calls from the
// client process over localhost HTTP.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (one request per connection)
//	  → decode request line → read call frames from the exchange file
//	  → Logging → Recovery → user middlewares → registered handler
//	  → write result (or error) frame back to the same exchange file
//	  → minimal HTTP status response
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/denfromufa/msl-loadlib/codec"
	"github.com/denfromufa/msl-loadlib/loadlib"
	"github.com/denfromufa/msl-loadlib/message"
	"github.com/denfromufa/msl-loadlib/middleware"
	"github.com/denfromufa/msl-loadlib/protocol"
)

// Server hosts one loaded library plus any number of registered methods
// layered on top of it.
type Server struct {
	host        string
	port        int // requested port; 0 means kernel-assigned
	quiet       bool
	lib         *loadlib.Library
	libPath     string
	handlers    map[string]*Handler
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // composed chain, built once in Serve
	listener    net.Listener
	wg          sync.WaitGroup // in-flight requests, drained on shutdown
	shutdown    atomic.Bool
	logger      *zap.Logger
	panicSkip   int
	drain       time.Duration
}

// New loads the library synchronously and constructs a server around it.
// A load failure aborts construction — the server never starts listening
// with a partial handle, the error propagates to whoever launched us.
func New(path string, libtype loadlib.LibType, host string, port int, quiet bool) (*Server, error) {
	lib, err := loadlib.Load(path, libtype)
	if err != nil {
		return nil, err
	}
	s := newServer(host, port, quiet)
	s.lib = lib
	s.libPath = lib.Path()
	return s, nil
}

func newServer(host string, port int, quiet bool) *Server {
	logger := zap.NewNop()
	if !quiet {
		logger, _ = zap.NewDevelopment()
	}
	return &Server{
		host:     host,
		port:     port,
		quiet:    quiet,
		handlers: make(map[string]*Handler),
		logger:   logger,
		drain:    5 * time.Second,
	}
}

// Use registers a middleware. Middlewares are applied in the order they are
// added, between the bridge's own logging/recovery pair and the handler.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// SetPanicSkip sets how many innermost frames the panic reporter drops when
// locating the failing statement. Collaborators whose handlers funnel panics
// through a shared helper raise this so the report points at their code.
func (s *Server) SetPanicSkip(n int) { s.panicSkip = n }

// Lib returns the loaded library handle.
func (s *Server) Lib() *loadlib.Library { return s.lib }

// Port returns the port the server is listening on. Valid after Serve has
// bound the listener; before that it reports the requested port.
func (s *Server) Port() int {
	if s.listener != nil {
		return s.listener.Addr().(*net.TCPAddr).Port
	}
	return s.port
}

// Serve binds the listener and enters the accept loop. When port 0 was
// requested, the kernel-assigned port is announced on stdout as a
// "PORT=<n>" line — that handshake is protocol, not console noise, so the
// quiet flag does not suppress it.
func (s *Server) Serve() error {
	listener, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return err
	}
	s.listener = listener

	// Build the chain once at startup: logging outermost so failures in user
	// middlewares are still logged, recovery just inside it so they are still
	// converted to failure responses instead of crashing the process.
	chain := append([]middleware.Middleware{
		middleware.Logging(s.logger),
		middleware.Recovery(s.panicSkip),
	}, s.middlewares...)
	s.handler = middleware.Chain(chain...)(s.dispatch)

	actual := listener.Addr().(*net.TCPAddr).Port
	if s.port == 0 {
		fmt.Printf("PORT=%d\n", actual)
	}
	s.logger.Info("serving",
		zap.String("lib", s.libPath),
		zap.String("host", s.host),
		zap.Int("port", actual))

	for {
		conn, err := listener.Accept()
		if err != nil {
			// During shutdown, closing the listener makes Accept fail.
			// The flag distinguishes that from a real error.
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		// Counted before the goroutine starts, so a connection accepted just
		// ahead of shutdown cannot slip past the drain.
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn processes a single request: the client opens one connection per
// call, so the response closes the connection.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.wg.Done()

	path, err := readRequest(conn)
	if err != nil {
		writeResponse(conn, statusBadRequest, []byte(err.Error()))
		return
	}

	method, codecType, exchange, err := protocol.DecodeRequestPath(path)
	if err != nil {
		writeResponse(conn, statusBadRequest, []byte(err.Error()))
		return
	}

	if method == protocol.MethodShutdown {
		writeResponse(conn, statusOK, nil)
		// Shutdown runs on its own goroutine so this response is flushed
		// before the listener loop exits — shutdown must not race the
		// in-flight response.
		go s.Shutdown(s.drain)
		return
	}

	c := codec.GetCodec(codec.CodecType(codecType))

	if method == protocol.MethodLibPath {
		// Introspection: report which binary was actually loaded, without
		// invoking the library.
		if err := protocol.WriteResult(exchange, c, s.libPath); err != nil {
			writeResponse(conn, statusInternal, []byte(err.Error()))
			return
		}
		writeResponse(conn, statusOK, nil)
		return
	}

	req := &message.Request{Method: method}
	var resp *message.Response
	args, kwargs, err := protocol.ReadCall(exchange)
	if err != nil {
		resp = message.Failed(&message.ErrorRecord{
			Kind:    message.KindDeserialization,
			Message: fmt.Sprintf("reading call payload: %v", err),
		})
	} else {
		req.Args, req.Kwargs = args, kwargs
		resp = s.handler(context.Background(), req)
	}

	if resp.Status == message.StatusOK {
		if err := protocol.WriteResult(exchange, c, resp.Result); err != nil {
			resp = message.Failed(&message.ErrorRecord{
				Kind:    "SerializationFailed",
				Message: fmt.Sprintf("writing result for %q: %v", method, err),
			})
		} else {
			writeResponse(conn, statusOK, nil)
			return
		}
	}

	// Failure path: the structured record replaces the payload in the
	// exchange slot, and its formatted text is the plain-text response body.
	if err := protocol.WriteError(exchange, c, resp.Err); err != nil {
		s.logger.Warn("writing error frame", zap.String("method", method), zap.Error(err))
	}
	writeResponse(conn, statusNotImplemented, []byte(resp.Err.Error()))
}

// dispatch resolves the method in the registry and invokes it. It is the
// innermost HandlerFunc of the middleware chain.
func (s *Server) dispatch(ctx context.Context, req *message.Request) *message.Response {
	h, ok := s.handlers[req.Method]
	if !ok {
		return message.Failed(&message.ErrorRecord{
			Kind:    message.KindMethodNotFound,
			Message: fmt.Sprintf("no method %q registered on this server", req.Method),
		})
	}

	result, err := h.Fn(ctx, req.Args, req.Kwargs)
	if err != nil {
		// A handler may return a fully specified record to control what the
		// client sees; otherwise the record points at the handler itself.
		var rec *message.ErrorRecord
		if !errors.As(err, &rec) {
			rec = &message.ErrorRecord{
				File:    h.File,
				Line:    h.Line,
				Func:    h.Name,
				Kind:    message.KindOf(err),
				Message: err.Error(),
			}
		}
		return message.Failed(rec)
	}
	return message.OK(result)
}

// invoke runs a request through the composed chain, building a minimal one
// when Serve has not composed it yet (the interactive console path).
func (s *Server) invoke(ctx context.Context, req *message.Request) *message.Response {
	if s.handler != nil {
		return s.handler(ctx, req)
	}
	return middleware.Recovery(s.panicSkip)(s.dispatch)(ctx, req)
}

// Shutdown performs graceful shutdown: stop accepting, drain in-flight
// requests with a timeout, release the library handle. Calling it twice is
// safe; the second call returns immediately.
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.shutdown.Swap(true) {
		return nil
	}
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("timeout waiting for in-flight requests to finish")
	}

	if s.lib != nil {
		s.lib.Close()
	}
	s.logger.Info("stopped", zap.String("host", s.host), zap.Int("port", s.port))
	return err
}
