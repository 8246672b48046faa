package report

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles defines the visual theme for terminal report output.
// Lipgloss automatically degrades to no-color when output is not a TTY.
type Styles struct {
	// Header is used for the summary line.
	Header lipgloss.Style

	// TableHeader styles the header row of evidence tables.
	TableHeader lipgloss.Style

	// TableCell styles regular table cells.
	TableCell lipgloss.Style

	// Positions styles the asserted positions column.
	Positions lipgloss.Style

	// Flaky styles the flaky count when it is non-zero.
	Flaky lipgloss.Style

	// Clean styles the flaky count when it is zero.
	Clean lipgloss.Style

	// Border is used for table borders.
	Border lipgloss.Style

	// Muted is used for de-emphasized text such as skipped files.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme for terminal reports.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),

		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		TableCell:   lipgloss.NewStyle().PaddingRight(1),
		Positions:   lipgloss.NewStyle().Foreground(lipgloss.Color("208")).PaddingRight(1),

		Flaky: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Clean: lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// CountStyle returns Flaky for a non-zero count and Clean otherwise.
func (s Styles) CountStyle(n int) lipgloss.Style {
	if n > 0 {
		return s.Flaky
	}
	return s.Clean
}
