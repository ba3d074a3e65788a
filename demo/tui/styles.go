package tui

import (
	"catalystbot/types"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
const (
	colorPrimary   = "#7D56F4"
	colorSuccess   = "#04B575"
	colorError     = "#FF0000"
	colorWarning   = "#FFB000"
	colorInfo      = "#626262"
	colorHighlight = "#FAFAFA"
	colorBorder    = "#874BFD"
)

// Styles for the TUI application
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginTop(1).
			MarginBottom(1)

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorInfo))

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(1, 2)

	HighlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorHighlight)).
			Background(lipgloss.Color(colorPrimary)).
			Padding(0, 1)
)

func tierStyle(t types.Tier) lipgloss.Style {
	switch t {
	case types.TierStrongBuy, types.TierBuy:
		return StatusStyle
	case types.TierShort, types.TierStrongShort:
		return ErrorStyle
	}
	return InfoStyle
}

func severityStyle(s types.Severity) lipgloss.Style {
	switch s {
	case types.SeverityWarning:
		return WarningStyle
	case types.SeverityError:
		return ErrorStyle
	}
	return InfoStyle
}
