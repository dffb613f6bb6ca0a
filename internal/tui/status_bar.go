package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusBar is the bottom line: a spinner while a request is pending, text
// on the left and cache figures on the right.
type StatusBar struct {
	left    string
	right   string
	style   lipgloss.Style
	spinner spinner.Model
	loading bool
}

// NewStatusBar creates a status bar rendered with style
func NewStatusBar(style lipgloss.Style) StatusBar {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = style

	return StatusBar{
		style:   style,
		spinner: s,
	}
}

// SetLoading toggles the spinner
func (s *StatusBar) SetLoading(loading bool) tea.Cmd {
	if loading && !s.loading {
		s.loading = true
		return s.spinner.Tick
	}
	s.loading = loading
	return nil
}

// Loading reports whether the spinner is showing
func (s *StatusBar) Loading() bool {
	return s.loading
}

// SetText sets the left and right text
func (s *StatusBar) SetText(left, right string) {
	s.left, s.right = left, right
}

// Update advances the spinner
func (s *StatusBar) Update(msg tea.Msg) tea.Cmd {
	if !s.loading {
		return nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return cmd
}

// View renders the bar into width columns
func (s *StatusBar) View(width int) string {
	left := s.left
	if s.loading {
		left = s.spinner.View() + " " + left
	}
	gap := width - lipgloss.Width(left) - lipgloss.Width(s.right)
	if gap < 1 {
		gap = 1
	}
	return s.style.Render(left + lipgloss.NewStyle().Width(gap).Render("") + s.right)
}
