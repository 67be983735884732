package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dqguardrail/guardrail/internal/remote"
	"github.com/dqguardrail/guardrail/internal/scan"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	activeTabStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Underline(true)
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	bannerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Padding(0, 1)
	headingStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("117"))
)

func bandStyle(b scan.Band) lipgloss.Style {
	switch b {
	case scan.BandGood:
		return successStyle
	case scan.BandPoor:
		return errStyle
	default:
		return warnStyle
	}
}

func severityStyle(s remote.Severity) lipgloss.Style {
	switch s {
	case remote.SeverityHigh:
		return errStyle
	case remote.SeverityMedium:
		return warnStyle
	default:
		return dimStyle
	}
}
