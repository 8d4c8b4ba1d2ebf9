// Package output renders command results as styled text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
)

// Mode selects how command output is rendered.
type Mode string

const (
	// ModeAuto renders text, with styling decided by the terminal.
	ModeAuto Mode = "auto"
	// ModeText renders human-readable text.
	ModeText Mode = "text"
	// ModeJSON renders machine-readable JSON.
	ModeJSON Mode = "json"
)

// Styles holds the lipgloss styles shared by all commands.
type Styles struct {
	Header1       lipgloss.Style
	Header2       lipgloss.Style
	Bold          lipgloss.Style
	Muted         lipgloss.Style
	Success       lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	Info          lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

func newStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:       lr.NewStyle().Bold(true).Underline(true),
		Header2:       lr.NewStyle().Bold(true),
		Bold:          lr.NewStyle().Bold(true),
		Muted:         lr.NewStyle().Foreground(lipgloss.Color("8")),
		Success:       lr.NewStyle().Foreground(lipgloss.Color("2")),
		Warning:       lr.NewStyle().Foreground(lipgloss.Color("3")),
		Error:         lr.NewStyle().Foreground(lipgloss.Color("1")),
		Info:          lr.NewStyle().Foreground(lipgloss.Color("6")),
		StatusSuccess: lr.NewStyle().Foreground(lipgloss.Color("2")).SetString("✓"),
		StatusFailed:  lr.NewStyle().Foreground(lipgloss.Color("1")).SetString("✗"),
	}
}

// Renderer writes command output in the selected mode. Styling follows
// the capabilities of the output writer, so piped output stays plain.
type Renderer struct {
	out     io.Writer
	errOut  io.Writer
	mode    Mode
	styles  *Styles
	profile termenv.Profile
}

// NewRenderer creates a renderer writing to out, with warnings and
// errors going to errOut.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return &Renderer{
		out:     out,
		errOut:  errOut,
		mode:    mode,
		styles:  newStyles(lipgloss.NewRenderer(out)),
		profile: termenv.NewOutput(out).EnvColorProfile(),
	}
}

// EffectiveMode resolves ModeAuto to a concrete mode.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode == ModeJSON {
		return ModeJSON
	}
	return ModeText
}

// Out returns the primary output writer.
func (r *Renderer) Out() io.Writer { return r.out }

// Styles returns the style set bound to the output writer.
func (r *Renderer) Styles() *Styles { return r.styles }

// Println writes a line to the output writer.
func (r *Renderer) Println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}

// Printf writes formatted text to the output writer.
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// JSON writes v as indented JSON to the output writer.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success writes a message prefixed with a check mark.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintf(r.out, "%s %s\n", r.styles.StatusSuccess, msg)
}

// Warning writes a warning to the error writer.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintf(r.errOut, "%s %s\n", r.styles.Warning.Render("!"), msg)
}

// Error writes an error message to the error writer.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintf(r.errOut, "%s %s\n", r.styles.StatusFailed, msg)
}

// Header writes a styled section heading.
func (r *Renderer) Header(level int, text string) {
	style := r.styles.Header1
	if level > 1 {
		style = r.styles.Header2
	}
	r.Println(style.Render(text))
}

// StatusLine writes a per-item result line: icon, name and an optional
// detail in parentheses.
func (r *Renderer) StatusLine(name, status, detail string) {
	icon := r.styles.StatusSuccess.String()
	switch status {
	case "failed", "error":
		icon = r.styles.StatusFailed.String()
	case "warn", "skipped":
		icon = r.styles.Warning.Render("!")
	}
	if detail != "" {
		_, _ = fmt.Fprintf(r.out, "  %s %s (%s)\n", icon, name, detail)
		return
	}
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", icon, name)
}

// Table renders header and rows on the output writer. Box-drawing
// borders are used only when the writer supports color; piped output
// falls back to the plain ASCII style.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	if r.profile == termenv.Ascii {
		t.SetStyle(table.StyleDefault)
	} else {
		t.SetStyle(table.StyleLight)
	}

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}

	t.Render()
}
