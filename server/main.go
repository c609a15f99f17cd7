package server

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/denfromufa/msl-loadlib/loadlib"
)

// MainConfig carries the parsed command-line arguments into a collaborator's
// server factory. A collaborator with a fixed library can ignore LibPath and
// LibType; one that hosts whatever the client points it at forwards them.
type MainConfig struct {
	LibPath string
	LibType loadlib.LibType
	Host    string
	Port    int
	Quiet   bool
}

// Factory builds the collaborator's server from the launch configuration.
type Factory func(cfg MainConfig) (*Server, error)

// Main is the entry point of a server executable. It parses the spawn
// interface flags, handles the diagnostic modes (-version, -interactive),
// and otherwise constructs the server and serves until shutdown.
// Exit code 0 means graceful shutdown.
func Main(factory Factory) {
	var (
		libPath     = flag.String("lib", "", "path to the shared library to host")
		libType     = flag.String("libtype", "cdll", "calling convention: cdll, windll, oledll or net")
		host        = flag.String("host", "127.0.0.1", "interface to bind")
		port        = flag.Int("port", 0, "port to bind (0 = kernel-assigned, announced as PORT=<n>)")
		quiet       = flag.Bool("quiet", false, "suppress server log output")
		version     = flag.Bool("version", false, "print the runtime version and exit")
		interactive = flag.Bool("interactive", false, "start an interactive console bound to the hosted methods")
	)
	flag.Parse()

	if *version {
		fmt.Println(VersionString())
		return
	}

	lt, err := loadlib.ParseLibType(*libType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	srv, err := factory(MainConfig{
		LibPath: *libPath,
		LibType: lt,
		Host:    *host,
		Port:    *port,
		Quiet:   *quiet,
	})
	if err != nil {
		// Library load failures land here: the server never starts listening.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *interactive {
		if err := RunConsole(srv); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := srv.Serve(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// VersionString reports the runtime hosting the server, e.g.
// "Go 1.24.5 (linux/386)". The client spawns a short-lived process with
// -version to read it, so the answer reflects the executable on disk rather
// than a cached value.
func VersionString() string {
	return fmt.Sprintf("Go %s (%s/%s)",
		strings.TrimPrefix(runtime.Version(), "go"), runtime.GOOS, runtime.GOARCH)
}
