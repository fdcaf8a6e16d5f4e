package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/robot-bridge/bridge"
	"github.com/wippyai/robot-bridge/config"
	"github.com/wippyai/robot-bridge/errors"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	outStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	inStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const commandTimeout = 10 * time.Second

// NewInteractiveCommand creates the interactive command.
func NewInteractiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Interactive console for connecting robots and setting LEDs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.InvalidInput(errors.PhaseConfig, "interactive mode needs a terminal")
			}
			cfg, logger, err := setup(cmd, rootOpts)
			if err != nil {
				return err
			}
			// The TUI owns the terminal; only errors reach stderr.
			logger = logger.WithOptions(zap.IncreaseLevel(zap.ErrorLevel))
			return runInteractive(cfg, logger)
		},
	}
	return cmd
}

type line struct {
	style lipgloss.Style
	text  string
}

type interactiveModel struct {
	session *session
	events  chan line
	robots  map[string]*bridge.Robot
	lines   []line
	input   textinput.Model
	view    viewport.Model
	ready   bool
}

type startedMsg struct {
	err     error
	session *session
}

type trafficMsg line

type connectedMsg struct {
	err    error
	robot  *bridge.Robot
	serial string
}

type ledMsg struct {
	err    error
	serial string
	rgb    [3]uint8
}

func newInteractiveModel() *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "connect <serial> | led <serial> <r> <g> <b> | quit"
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()

	return &interactiveModel{
		events: make(chan line, 256),
		robots: make(map[string]*bridge.Robot),
		input:  ti,
	}
}

// traffic reports stream bytes to the model without ever blocking the
// daemon; lines are dropped when the console falls behind.
func (m *interactiveModel) traffic() *traffic {
	emit := func(l line) {
		select {
		case m.events <- l:
		default:
		}
	}
	return &traffic{
		onWrite: func(b []byte) {
			emit(line{style: outStyle, text: "→ " + hex.EncodeToString(b)})
		},
		onDeliver: func(b []byte) {
			emit(line{style: inStyle, text: "← " + hex.EncodeToString(b)})
		},
	}
}

func (m *interactiveModel) waitTraffic() tea.Msg {
	return trafficMsg(<-m.events)
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitTraffic)
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if text == "" {
				break
			}
			m.appendLine(line{style: helpStyle, text: "> " + text})
			cmd, quit := m.execute(text)
			if quit {
				return m, tea.Quit
			}
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 4
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.view = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = height
		}
		m.refresh()

	case startedMsg:
		if msg.err != nil {
			m.appendLine(line{style: errorStyle, text: "session: " + msg.err.Error()})
			break
		}
		m.session = msg.session
		m.appendLine(line{style: resultStyle, text: "daemon linked to server"})

	case trafficMsg:
		m.appendLine(line(msg))
		cmds = append(cmds, m.waitTraffic)

	case connectedMsg:
		if msg.err != nil {
			m.appendLine(line{style: errorStyle, text: fmt.Sprintf("connect %s: %v", msg.serial, msg.err)})
			break
		}
		m.robots[msg.serial] = msg.robot
		m.appendLine(line{style: resultStyle, text: fmt.Sprintf("%s connected (handle %#x)", msg.serial, uint32(msg.robot.Handle()))})

	case ledMsg:
		if msg.err != nil {
			m.appendLine(line{style: errorStyle, text: fmt.Sprintf("led %s: %v", msg.serial, msg.err)})
			break
		}
		m.appendLine(line{style: resultStyle, text: fmt.Sprintf("%s led %d,%d,%d", msg.serial, msg.rgb[0], msg.rgb[1], msg.rgb[2])})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.view, cmd = m.view.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// execute runs one console command. It returns quit for quit or exit.
func (m *interactiveModel) execute(text string) (cmd tea.Cmd, quit bool) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "quit", "exit":
		return nil, true

	case "help":
		m.appendLine(line{style: helpStyle, text: "connect <serial>          connect a robot"})
		m.appendLine(line{style: helpStyle, text: "led <serial> <r> <g> <b>  set a connected robot's LED"})
		m.appendLine(line{style: helpStyle, text: "quit                      leave"})
		return nil, false

	case "connect":
		if len(fields) != 2 {
			m.appendLine(line{style: errorStyle, text: "usage: connect <serial>"})
			return nil, false
		}
		if m.session == nil {
			m.appendLine(line{style: errorStyle, text: "no session"})
			return nil, false
		}
		s, serial := m.session, fields[1]
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			robot, err := s.robot(ctx, serial)
			return connectedMsg{serial: serial, robot: robot, err: err}
		}, false

	case "led":
		if len(fields) != 5 {
			m.appendLine(line{style: errorStyle, text: "usage: led <serial> <r> <g> <b>"})
			return nil, false
		}
		rgb, err := parseColor(fields[2:])
		if err != nil {
			m.appendLine(line{style: errorStyle, text: err.Error()})
			return nil, false
		}
		serial := fields[1]
		robot, ok := m.robots[serial]
		if !ok {
			m.appendLine(line{style: errorStyle, text: serial + " is not connected"})
			return nil, false
		}
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			_, err := robot.SetLedColor(ctx, rgb[0], rgb[1], rgb[2]).Await(ctx)
			return ledMsg{serial: serial, rgb: rgb, err: err}
		}, false
	}

	m.appendLine(line{style: errorStyle, text: fmt.Sprintf("unknown command %q, try help", fields[0])})
	return nil, false
}

func (m *interactiveModel) appendLine(l line) {
	m.lines = append(m.lines, l)
	m.refresh()
}

func (m *interactiveModel) refresh() {
	if !m.ready {
		return
	}
	rendered := make([]string, len(m.lines))
	for i, l := range m.lines {
		rendered[i] = l.style.Render(l.text)
	}
	m.view.SetContent(strings.Join(rendered, "\n"))
	m.view.GotoBottom()
}

func (m *interactiveModel) View() string {
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("linkbot"))
	if m.session != nil {
		b.WriteString(" ")
		b.WriteString(helpStyle.Render(m.session.bridge.Session().String()))
	}
	b.WriteString("\n")
	b.WriteString(m.view.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter run • help commands • esc quit"))
	return b.String()
}

func runInteractive(cfg *config.Config, logger *zap.Logger) error {
	m := newInteractiveModel()
	p := tea.NewProgram(m, tea.WithAltScreen())

	started := make(chan *session, 1)
	go func() {
		s, err := openSession(context.Background(), cfg, logger, m.traffic())
		started <- s
		p.Send(startedMsg{session: s, err: err})
	}()

	_, err := p.Run()
	if s := <-started; s != nil {
		_ = s.Close(context.Background())
	}
	return err
}
