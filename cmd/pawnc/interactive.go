package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	pawnc "github.com/wippyai/wasm-pawnc"
	"github.com/wippyai/wasm-pawnc/compiler"
	"github.com/wippyai/wasm-pawnc/diag"
	"github.com/wippyai/wasm-pawnc/options"
)

// header and footer lines around the viewport
const chromeHeight = 6

type interactiveModel struct {
	compiler *compiler.Compiler
	base     options.Options
	cfg      cliConfig
	flags    textinput.Model
	output   viewport.Model
	status   string
	runs     int
	running  bool
}

type compiledMsg struct {
	err    error
	res    diag.Result
	size   int
	wrote  bool
	werr   error
	flags  string
	parsed options.Options
}

func newInteractiveModel(c *compiler.Compiler, cfg cliConfig, base options.Options) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "flags: "
	ti.Placeholder = "-Z+ -;+"
	ti.SetValue(cfg.flags)
	ti.Width = 60
	ti.Focus()

	return &interactiveModel{
		compiler: c,
		base:     base,
		cfg:      cfg,
		flags:    ti,
		output:   viewport.New(80, 20),
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.compile(m.flags.Value()))
}

// compile re-reads the source from disk so edits made in another window are
// picked up on every run.
func (m *interactiveModel) compile(flagText string) tea.Cmd {
	m.running = true
	return func() tea.Msg {
		opts := m.base
		flags, err := options.ParseFlags(flagText)
		if err != nil {
			return compiledMsg{err: err, flags: flagText}
		}
		opts.Flags = flags

		res, err := compileFile(context.Background(), m.compiler, m.cfg.source, opts)
		msg := compiledMsg{err: err, res: res, flags: flagText, parsed: opts}
		if err == nil && res.Success {
			msg.size, msg.werr = writeArtifact(res, m.cfg.output)
			msg.wrote = msg.werr == nil
		}
		return msg
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if !m.running {
				return m, m.compile(m.flags.Value())
			}
			return m, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.output.Width = msg.Width
		m.output.Height = max(msg.Height-chromeHeight, 3)
		m.flags.Width = max(msg.Width-len(m.flags.Prompt)-2, 10)

	case compiledMsg:
		m.running = false
		m.runs++
		m.status = m.statusLine(msg)
		if msg.err == nil {
			m.output.SetContent(formatResult(msg.res, func(s lipgloss.Style, text string) string {
				return s.Render(text)
			}) + "\n" + helpStyle.Render(strings.TrimRight(msg.res.Output, "\n")))
			m.output.GotoTop()
		}
	}

	var cmd tea.Cmd
	m.flags, cmd = m.flags.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *interactiveModel) statusLine(msg compiledMsg) string {
	switch {
	case msg.err != nil:
		return errorStyle.Render(fmt.Sprintf("Error: %v", msg.err))
	case msg.werr != nil:
		return errorStyle.Render(fmt.Sprintf("Error: %v", msg.werr))
	case msg.wrote:
		return successStyle.Render(fmt.Sprintf("#%d wrote %s (%s)", m.runs, m.cfg.output, formatSize(msg.size))) +
			" " + helpStyle.Render(options.String(msg.parsed, pawnc.IncludeRoot))
	default:
		return errorStyle.Render(fmt.Sprintf("#%d compile failed", m.runs))
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("pawnc"))
	b.WriteString(" ")
	b.WriteString(fileStyle.Render(m.cfg.source))
	b.WriteString("\n\n")
	b.WriteString(m.flags.View())
	b.WriteString("\n")

	switch {
	case m.running:
		b.WriteString(helpStyle.Render("compiling..."))
	case m.status != "":
		b.WriteString(m.status)
	}
	b.WriteString("\n")

	b.WriteString(m.output.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter recompile • ↑/↓ scroll • esc quit"))
	return b.String()
}

func runInteractive(c *compiler.Compiler, cfg cliConfig, opts options.Options) error {
	p := tea.NewProgram(newInteractiveModel(c, cfg, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
