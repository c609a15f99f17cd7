package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/denfromufa/msl-loadlib/codec"
	"github.com/denfromufa/msl-loadlib/loadlib"
)

type config struct {
	host      string
	port      int
	timeout   time.Duration
	quiet     bool
	codec     codec.Codec
	logger    *zap.Logger
	libPath   string
	libType   string
	env       []string
	extraArgs []string
}

func defaultConfig() config {
	return config{
		host:    "127.0.0.1",
		port:    0,
		timeout: 10 * time.Second,
		quiet:   true,
		codec:   codec.GetCodec(codec.CodecTypeGob),
		logger:  zap.NewNop(),
	}
}

// Option configures a Client before it connects.
type Option func(*config)

// WithHost overrides the loopback host the server binds to.
func WithHost(host string) Option {
	return func(c *config) { c.host = host }
}

// WithPort pins the server to a fixed port instead of letting it pick a
// free one. Fixed ports forfeit the collision avoidance that port 0 gives
// concurrent clients.
func WithPort(port int) Option {
	return func(c *config) { c.port = port }
}

// WithTimeout bounds how long Connect waits for the server to come up.
// The default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithQuiet controls the server's -quiet flag. Quiet is the default; pass
// false to see the server's own logging on stderr.
func WithQuiet(quiet bool) Option {
	return func(c *config) { c.quiet = quiet }
}

// WithCodec selects the payload encoding for this client. Both sides of a
// round trip always use the codec named in the request, so mixing codecs
// across clients is safe.
func WithCodec(t codec.CodecType) Option {
	return func(c *config) { c.codec = codec.GetCodec(t) }
}

// WithLogger attaches a logger for connection lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithLibrary forwards a library path and calling convention to a generic
// server executable via its -lib/-libtype flags. Purpose-built servers that
// hard-code their library do not need this.
func WithLibrary(path string, libtype loadlib.LibType) Option {
	return func(c *config) {
		c.libPath = path
		c.libType = string(libtype)
	}
}

// WithEnv appends environment variables (KEY=VALUE) to the server process
// on top of the current environment.
func WithEnv(env ...string) Option {
	return func(c *config) { c.env = append(c.env, env...) }
}

// WithExtraArgs appends extra command-line arguments for the server
// executable, after the standard flags.
func WithExtraArgs(args ...string) Option {
	return func(c *config) { c.extraArgs = append(c.extraArgs, args...) }
}
