package tui

import (
	"github.com/charmbracelet/lipgloss"

	"portfolio-assistant/internal/render"
)

type palette struct {
	user    lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
	errText lipgloss.Style
	header  lipgloss.Style
}

func stylesFor(theme render.Theme) palette {
	accent := lipgloss.Color("#60a5fa")
	text := lipgloss.Color("#e2e8f0")
	dim := lipgloss.Color("#94a3b8")
	if theme == render.ThemeLight {
		accent = lipgloss.Color("#2563eb")
		text = lipgloss.Color("#0f172a")
		dim = lipgloss.Color("#64748b")
	}
	return palette{
		user:    lipgloss.NewStyle().Foreground(text).PaddingLeft(2),
		label:   lipgloss.NewStyle().Foreground(accent).Bold(true),
		dim:     lipgloss.NewStyle().Foreground(dim),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626")),
		header:  lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1),
	}
}
