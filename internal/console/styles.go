package console

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("39")
	colorMuted   = lipgloss.Color("245")
	colorWarning = lipgloss.Color("220")
	colorError   = lipgloss.Color("196")
)

// styles are bound to the output writer so colors are dropped when it is
// not a terminal.
type styles struct {
	prompt   lipgloss.Style
	speaker  lipgloss.Style
	thinking lipgloss.Style
	thought  lipgloss.Style
	warning  lipgloss.Style
	failure  lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		prompt:   r.NewStyle().Bold(true),
		speaker:  r.NewStyle().Foreground(colorPrimary).Bold(true),
		thinking: r.NewStyle().Foreground(colorMuted).Italic(true),
		thought:  r.NewStyle().Foreground(colorMuted),
		warning:  r.NewStyle().Foreground(colorWarning),
		failure:  r.NewStyle().Foreground(colorError).Bold(true),
	}
}
