package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// TermProfile holds the detected stdout color profile, computed once at init.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Color modes accepted by NewRenderer.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// NewRenderer returns a lipgloss renderer for w. "auto" detects the
// terminal; "never" strips all styling; "always" forces true color.
func NewRenderer(w io.Writer, mode string) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	case ColorAlways:
		r.SetColorProfile(termenv.TrueColor)
	}
	return r
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor

	// Findings
	Cycle    lipgloss.AdaptiveColor
	Dangling lipgloss.AdaptiveColor
	Impact   lipgloss.AdaptiveColor
	OK       lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Title    lipgloss.Style
	Section  lipgloss.Style
	Label    lipgloss.Style
	Number   lipgloss.Style
	Subtle   lipgloss.Style
	CycleTx  lipgloss.Style
	Danger   lipgloss.Style
	Warning  lipgloss.Style
	Success  lipgloss.Style
	TableHdr lipgloss.Style
	TableRow lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},

		Cycle:    lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
		Dangling: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Impact:   lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},
		OK:       lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})
	t.Title = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)
	t.Section = r.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(t.Border)
	t.Label = r.NewStyle().Foreground(t.Secondary)
	t.Number = r.NewStyle().Bold(true)
	t.Subtle = r.NewStyle().Foreground(t.Muted).Italic(true)
	t.CycleTx = r.NewStyle().Foreground(t.Cycle)
	t.Danger = r.NewStyle().Foreground(t.Cycle).Bold(true)
	t.Warning = r.NewStyle().Foreground(t.Dangling)
	t.Success = r.NewStyle().Foreground(t.OK)
	t.TableHdr = r.NewStyle().Foreground(t.Primary).Bold(true).Padding(0, 1)
	t.TableRow = r.NewStyle().Padding(0, 1)

	return t
}
