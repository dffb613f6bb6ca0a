package tui

import (
	"github.com/charmbracelet/lipgloss"

	"minimg/internal/config"
)

// Styles holds the lipgloss styles derived from a config theme
type Styles struct {
	Title    lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Notice   lipgloss.Style
	Info     lipgloss.Style
	Help     lipgloss.Style
	Panel    lipgloss.Style
	Emphasis lipgloss.Style
}

// NewStyles builds the styles for theme
func NewStyles(theme config.Theme) Styles {
	if theme.Primary == "" {
		c := config.New()
		theme = c.Theme
	}
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color(theme.Primary)).
			Padding(0, 1),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#959595")),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(theme.Error)),
		Notice: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Warning)),
		Info: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Info)),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Success)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(theme.Border)).
			Padding(0, 1),
		Emphasis: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Emphasis)),
	}
}
