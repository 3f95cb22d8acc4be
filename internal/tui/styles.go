// Package tui: Lipgloss styles for the history browser.
package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the browser's Lipgloss styles.
type Styles struct {
	Header     lipgloss.Style
	PanelTitle lipgloss.Style
	Detail     lipgloss.Style
	Footer     lipgloss.Style
	FooterKey  lipgloss.Style
	StatusOK   lipgloss.Style
	StatusWarn lipgloss.Style
	StatusErr  lipgloss.Style
	Muted      lipgloss.Style
}

// newStyles returns the launchpad theme, sharing the CLI's orange palette.
func newStyles() Styles {
	bg := lipgloss.Color("#1A1410")
	surface := lipgloss.Color("#2A211B")
	primary := lipgloss.Color("#FF8C42")
	accent := lipgloss.Color("#FFD166")
	danger := lipgloss.Color("#F56565")
	success := lipgloss.Color("#68D391")
	muted := lipgloss.Color("#6B5E55")
	text := lipgloss.Color("#F2E8DF")

	return Styles{
		Header: lipgloss.NewStyle().
			Background(primary).Foreground(bg).
			Bold(true).Padding(0, 1),

		PanelTitle: lipgloss.NewStyle().
			Foreground(primary).Bold(true).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).
			BorderForeground(muted).Padding(0, 1),

		Detail: lipgloss.NewStyle().
			Foreground(text).Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Background(surface).Foreground(muted).
			Padding(0, 1),

		FooterKey: lipgloss.NewStyle().
			Foreground(primary).Bold(true),

		StatusOK:   lipgloss.NewStyle().Foreground(success),
		StatusWarn: lipgloss.NewStyle().Foreground(accent),
		StatusErr:  lipgloss.NewStyle().Foreground(danger),
		Muted:      lipgloss.NewStyle().Foreground(muted),
	}
}
