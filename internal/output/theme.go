package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
	"github.com/muesli/termenv"
)

// Theme is a StyleProvider backed by lipgloss styles bound to one writer.
// The color profile is detected from the writer, so output redirected to a
// file or pipe is plain.
type Theme struct {
	renderer *lipgloss.Renderer
	styles   map[SemanticType]themeStyle
	list     lipgloss.Style
}

// themeStyle adapts a lipgloss style to TextStyle.
type themeStyle struct {
	style lipgloss.Style
}

func (s themeStyle) Render(text string) string {
	return s.style.Render(text)
}

// NewTheme creates a Theme for w. noColor, NO_COLOR or a non-terminal writer
// disable styling.
func NewTheme(w io.Writer, noColor bool) *Theme {
	r := lipgloss.NewRenderer(w)
	if noColor || termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
	}

	green := lipgloss.AdaptiveColor{Light: "28", Dark: "42"}
	yellow := lipgloss.AdaptiveColor{Light: "130", Dark: "214"}
	red := lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	blue := lipgloss.AdaptiveColor{Light: "25", Dark: "39"}
	gray := lipgloss.AdaptiveColor{Light: "245", Dark: "240"}

	t := &Theme{renderer: r}
	styles := map[SemanticType]lipgloss.Style{
		SemanticPlain:   r.NewStyle(),
		SemanticInfo:    r.NewStyle().Foreground(blue),
		SemanticSuccess: r.NewStyle().Foreground(green),
		SemanticWarning: r.NewStyle().Foreground(yellow).Bold(true),
		SemanticError:   r.NewStyle().Foreground(red).Bold(true),
		SemanticHeader:  r.NewStyle().Bold(true).Underline(true),
		SemanticPath:    r.NewStyle().Foreground(blue),
		SemanticMuted:   r.NewStyle().Foreground(gray),
		SemanticAdded:   r.NewStyle().Foreground(green),
		SemanticRemoved: r.NewStyle().Foreground(red),
	}
	t.styles = make(map[SemanticType]themeStyle, len(styles))
	for sem, style := range styles {
		t.styles[sem] = themeStyle{style: style}
	}
	t.list = r.NewStyle().Foreground(yellow).PaddingRight(1)
	return t
}

// GetStyle implements StyleProvider.
func (t *Theme) GetStyle(semantic SemanticType) TextStyle {
	if s, ok := t.styles[semantic]; ok {
		return s
	}
	return t.styles[SemanticPlain]
}

// IsAvailable reports whether the writer supports color.
func (t *Theme) IsAvailable() bool {
	return t.renderer.ColorProfile() != termenv.Ascii
}

// ListStyle returns the enumerator style for numbered lists.
func (t *Theme) ListStyle() lipgloss.Style {
	return t.list
}

// NumberedList renders items as "1. item" lines. A nil style renders plain.
func NumberedList(items []string, enumerator *lipgloss.Style) string {
	style := lipgloss.NewStyle().PaddingRight(1)
	if enumerator != nil {
		style = *enumerator
	}
	l := list.New().Enumerator(list.Arabic).EnumeratorStyle(style)
	for _, item := range items {
		l.Item(item)
	}
	return l.String()
}
