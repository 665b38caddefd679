package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	primaryColor = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	successColor = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#02BF87"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#FE5F86", Dark: "#FE5F86"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
)

// styles renders command output. The zero value renders plain text.
type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	ok      lipgloss.Style
	failed  lipgloss.Style
	muted   lipgloss.Style
	border  lipgloss.Border
	colored bool
}

func newStyles(noColor bool) styles {
	if noColor {
		return styles{
			title:  lipgloss.NewStyle(),
			header: lipgloss.NewStyle(),
			cell:   lipgloss.NewStyle().Padding(0, 1),
			ok:     lipgloss.NewStyle(),
			failed: lipgloss.NewStyle(),
			muted:  lipgloss.NewStyle(),
			border: lipgloss.NormalBorder(),
		}
	}
	return styles{
		title:   lipgloss.NewStyle().Foreground(primaryColor).Bold(true),
		header:  lipgloss.NewStyle().Foreground(primaryColor).Bold(true).Padding(0, 1),
		cell:    lipgloss.NewStyle().Padding(0, 1),
		ok:      lipgloss.NewStyle().Foreground(successColor).Bold(true),
		failed:  lipgloss.NewStyle().Foreground(errorColor).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(mutedColor),
		border:  lipgloss.RoundedBorder(),
		colored: true,
	}
}

// table renders rows under headers.
func (s styles) table(headers []string, rows [][]string) string {
	t := table.New().
		Border(s.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return s.cell
		})
	if s.colored {
		t = t.BorderStyle(s.muted)
	}
	return t.String()
}
