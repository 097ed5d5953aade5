package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Tabular is implemented by results that can print as a table.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// Theme defines the table colors.
type Theme struct {
	Primary lipgloss.Color // Header and border color
	Dim     lipgloss.Color // Secondary text color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
	Dim    lipgloss.Style
	// MaxCellWidth truncates long cells; 0 disables.
	MaxCellWidth int
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header:       lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Cell:         lipgloss.NewStyle().Padding(0, 1),
		Border:       lipgloss.NewStyle().Foreground(t.Primary),
		Dim:          lipgloss.NewStyle().Foreground(t.Dim),
		MaxCellWidth: 60,
	}
}

// PlainStyles renders without colors or padding changes, for tests and
// non-terminal output.
func PlainStyles() Styles {
	return Styles{
		Header:       lipgloss.NewStyle().Padding(0, 1),
		Cell:         lipgloss.NewStyle().Padding(0, 1),
		Border:       lipgloss.NewStyle(),
		Dim:          lipgloss.NewStyle(),
		MaxCellWidth: 60,
	}
}

// RenderTable draws t with rounded borders.
func RenderTable(t Tabular, s Styles) string {
	rows := t.Rows()
	if s.MaxCellWidth > 1 {
		for _, row := range rows {
			for i, cell := range row {
				if lipgloss.Width(cell) > s.MaxCellWidth {
					row[i] = truncateString(cell, s.MaxCellWidth-1) + "…"
				}
			}
		}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return s.Cell
		}).
		Headers(t.Header()...).
		Rows(rows...).
		Render()
}

// truncateString safely truncates a string to the given width,
// handling multi-byte characters correctly.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	currentWidth := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if currentWidth+w > width {
			return string(runes[:i])
		}
		currentWidth += w
	}
	return s
}
