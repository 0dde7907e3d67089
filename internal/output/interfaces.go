// Package output renders snaptest results to a terminal. Styling is optional:
// the Printer depends only on StyleProvider and falls back to plain text
// with a symbol prefix on status lines.
package output

// StyleProvider supplies styles for semantic output types.
type StyleProvider interface {
	GetStyle(semantic SemanticType) TextStyle
	// IsAvailable reports whether the provider can style text at all, for
	// example false when colors are disabled.
	IsAvailable() bool
}

// TextStyle renders text with styling.
type TextStyle interface {
	Render(text string) string
}

// SemanticType is the meaning of a piece of output.
type SemanticType string

// Status semantics.
const (
	SemanticPlain   SemanticType = "plain"
	SemanticInfo    SemanticType = "info"
	SemanticSuccess SemanticType = "success" // unchanged or accepted
	SemanticWarning SemanticType = "warning" // changed
	SemanticError   SemanticType = "error"   // capture failure
)

// Detail semantics used inside reports.
const (
	SemanticHeader  SemanticType = "header"
	SemanticPath    SemanticType = "path"
	SemanticMuted   SemanticType = "muted"
	SemanticAdded   SemanticType = "added"
	SemanticRemoved SemanticType = "removed"
)

// plainPrefix is the symbol that marks a status line when color is off. The
// theme keeps it too so status lines read the same either way.
func plainPrefix(semantic SemanticType) string {
	switch semantic {
	case SemanticSuccess:
		return "✓ "
	case SemanticWarning:
		return "⚠ "
	case SemanticError:
		return "✗ "
	case SemanticInfo:
		return "ℹ "
	}
	return ""
}
