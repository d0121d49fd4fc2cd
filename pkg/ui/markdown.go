package ui

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// MarkdownStyle picks the glamour style for a color mode.
func MarkdownStyle(mode string) string {
	switch mode {
	case ColorNever:
		return "notty"
	case ColorAlways:
		return "dark"
	default:
		return ""
	}
}

// RenderMarkdown renders markdown for a terminal. An empty style detects
// the background; width 0 disables wrapping.
func RenderMarkdown(md, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithEmoji()}
	switch style {
	case "":
		opts = append(opts, glamour.WithAutoStyle())
	case "notty", "ascii":
		opts = append(opts, glamour.WithStandardStyle(style), glamour.WithColorProfile(termenv.Ascii))
	default:
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
