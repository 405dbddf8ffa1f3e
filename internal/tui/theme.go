package tui

import (
	"github.com/charmbracelet/lipgloss"

	"logdesk/internal/types"
)

// Theme defines the color palette of the TUI. All colors are ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Severity colors.
	SeverityError lipgloss.Color
	SeverityWarn  lipgloss.Color
	SeverityInfo  lipgloss.Color
	SeverityDebug lipgloss.Color

	StatusResolved   lipgloss.Color
	StatusUnresolved lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	ErrorText        lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),

	SelectedBackground: lipgloss.Color("237"),
	SelectedForeground: lipgloss.Color("255"),

	SeverityError: lipgloss.Color("196"),
	SeverityWarn:  lipgloss.Color("214"),
	SeverityInfo:  lipgloss.Color("39"),
	SeverityDebug: lipgloss.Color("245"),

	StatusResolved:   lipgloss.Color("78"),
	StatusUnresolved: lipgloss.Color("203"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	ErrorText:        lipgloss.Color("203"),
}

// severityColor returns the color for a severity; free-text severities use normal text
func (theme Theme) severityColor(severity string) lipgloss.Color {
	switch severity {
	case types.SeverityError:
		return theme.SeverityError
	case types.SeverityWarn:
		return theme.SeverityWarn
	case types.SeverityInfo:
		return theme.SeverityInfo
	case types.SeverityDebug:
		return theme.SeverityDebug
	}
	return theme.NormalText
}
