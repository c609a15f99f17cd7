package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/denfromufa/msl-loadlib/message"
)

var (
	consoleTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(lipgloss.Color("#5F5FD7")).
				Padding(0, 1)

	consoleResultStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#90EE90"))

	consoleErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF6B6B"))

	consoleHelpStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))
)

// RunConsole starts an interactive console bound to the hosted methods:
// type a method name followed by positional arguments and key=value pairs,
// and the call is dispatched against the registry exactly as a remote
// request would be. Best-effort diagnostics, not part of the RPC contract.
func RunConsole(srv *Server) error {
	input := textinput.New()
	input.Placeholder = "method arg1 arg2 key=value"
	input.Focus()

	m := consoleModel{srv: srv, input: input}
	_, err := tea.NewProgram(m).Run()
	return err
}

type consoleModel struct {
	srv     *Server
	input   textinput.Model
	history []string
}

func (m consoleModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			switch line {
			case "":
				return m, nil
			case "exit", "quit":
				return m, tea.Quit
			case "methods":
				m.history = append(m.history, "> methods",
					consoleHelpStyle.Render(strings.Join(m.srv.Methods(), "  ")))
				return m, nil
			}
			m.history = append(m.history, "> "+line, m.eval(line))
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m consoleModel) View() string {
	var b strings.Builder
	b.WriteString(consoleTitleStyle.Render("loadlib console — " + m.srv.libPath))
	b.WriteString("\n\n")

	// Keep the last few exchanges on screen.
	history := m.history
	if len(history) > 16 {
		history = history[len(history)-16:]
	}
	for _, line := range history {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(consoleHelpStyle.Render("methods: list hosted methods • exit/esc: leave"))
	return b.String()
}

// eval parses a console line into a call and dispatches it.
func (m consoleModel) eval(line string) string {
	fields := strings.Fields(line)
	req := &message.Request{
		Method: fields[0],
		Args:   []any{},
		Kwargs: map[string]any{},
	}
	for _, tok := range fields[1:] {
		if key, value, ok := strings.Cut(tok, "="); ok && key != "" {
			req.Kwargs[key] = parseScalar(value)
		} else {
			req.Args = append(req.Args, parseScalar(tok))
		}
	}

	resp := m.srv.invoke(context.Background(), req)
	if resp.Status == message.StatusFailed {
		return consoleErrorStyle.Render(strings.TrimSpace(resp.Err.Error()))
	}
	return consoleResultStyle.Render(fmt.Sprintf("%v", resp.Result))
}

// parseScalar guesses the Go type of a console token: int, float64, bool,
// else string.
func parseScalar(tok string) any {
	if n, err := strconv.Atoi(tok); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(tok); err == nil {
		return b
	}
	return strings.Trim(tok, `"'`)
}
