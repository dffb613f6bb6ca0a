package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"minimg/internal/config"
)

// printer writes themed command output
type printer struct {
	out      io.Writer
	header   lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	label    lipgloss.Style
	dim      lipgloss.Style
	emphasis lipgloss.Style
}

func newPrinter(out io.Writer, theme config.Theme) *printer {
	return &printer{
		out:      out,
		header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.Primary)),
		success:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Success)),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Warning)),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Info)).Width(14),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		emphasis: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Emphasis)),
	}
}

func (p *printer) Header(s string) {
	fmt.Fprintln(p.out, p.header.Render(s))
}

func (p *printer) Success(s string) {
	fmt.Fprintln(p.out, p.success.Render("✓ "+s))
}

func (p *printer) Warning(s string) {
	fmt.Fprintln(p.out, p.warning.Render("! "+s))
}

func (p *printer) Dim(s string) {
	fmt.Fprintln(p.out, p.dim.Render(s))
}

// Field prints an aligned "label value" line
func (p *printer) Field(label, value string) {
	fmt.Fprintf(p.out, "  %s %s\n", p.label.Render(label+":"), value)
}

func (p *printer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format, args...)
}
