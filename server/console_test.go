package server

import (
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/stretchr/testify/assert"
)

func TestParseScalar(t *testing.T) {
	assert.Equal(t, 42, parseScalar("42"))
	assert.Equal(t, -7, parseScalar("-7"))
	assert.Equal(t, 2.5, parseScalar("2.5"))
	assert.Equal(t, true, parseScalar("true"))
	assert.Equal(t, "hello", parseScalar("hello"))
	assert.Equal(t, "quoted", parseScalar(`"quoted"`))
}

func TestConsoleEval(t *testing.T) {
	s := newServer("127.0.0.1", 0, true)
	s.Register("add", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		sum := 0
		for _, a := range args {
			sum += a.(int)
		}
		if off, ok := kwargs["offset"].(int); ok {
			sum += off
		}
		return sum, nil
	})

	m := consoleModel{srv: s, input: textinput.New()}

	out := m.eval("add 1 2 offset=10")
	assert.Contains(t, out, "13")

	out = m.eval("missing")
	assert.Contains(t, out, "MethodNotFound")
}

func TestVersionString(t *testing.T) {
	v := VersionString()
	assert.True(t, strings.HasPrefix(v, "Go "), "got %q", v)
	assert.Contains(t, v, "/")
	assert.NotContains(t, v, "go1.", "the go prefix is trimmed from the toolchain version")
}
