package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-pawnc/diag"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD166"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type printer struct {
	w     io.Writer
	plain bool
}

func newPrinter(w io.Writer, plain bool) *printer {
	return &printer{w: w, plain: plain}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

func (p *printer) result(res diag.Result) {
	fmt.Fprint(p.w, formatResult(res, p.render))
}

func (p *printer) artifact(path string, size int) {
	fmt.Fprintf(p.w, "%s %s (%s)\n",
		p.render(successStyle, "wrote"),
		p.render(fileStyle, path),
		formatSize(size))
}

// formatResult renders the diagnostics followed by a one-line summary.
func formatResult(res diag.Result, render func(lipgloss.Style, string) string) string {
	var b strings.Builder

	for _, line := range res.Errors {
		b.WriteString(formatLine(line, errorStyle, render))
	}
	for _, line := range res.Warnings {
		if contains(res.Errors, line) {
			continue
		}
		b.WriteString(formatLine(line, warningStyle, render))
	}

	summary := fmt.Sprintf("%d error(s), %d warning(s)", len(res.Errors), len(res.Warnings))
	if res.Success {
		if res.ArtifactSize != nil {
			summary += ", " + formatSize(int(*res.ArtifactSize))
		}
		b.WriteString(render(successStyle, "OK"))
	} else {
		if code, ok := diag.ExitCode(res.Output); ok {
			summary += fmt.Sprintf(", exit code %d", code)
		}
		b.WriteString(render(errorStyle, "FAILED"))
	}
	b.WriteString(" ")
	b.WriteString(render(helpStyle, summary))
	b.WriteString("\n")
	return b.String()
}

func formatLine(line string, style lipgloss.Style, render func(lipgloss.Style, string) string) string {
	d, ok := diag.ParseDiagnostic(line)
	if !ok {
		return render(style, line) + "\n"
	}
	loc := fmt.Sprintf("%s:%d", d.File, d.Line)
	head := fmt.Sprintf("%s %03d", d.Severity, d.Code)
	return fmt.Sprintf("%s %s %s\n", render(fileStyle, loc), render(style, head), d.Message)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
