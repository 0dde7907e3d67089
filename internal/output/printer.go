package output

import (
	"io"
	"os"
	"strings"
	"sync"
)

// Printer writes semantic output. It is safe for concurrent use.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	styles StyleProvider
	plain  bool
}

// NewPrinter creates a Printer writing to os.Stdout unless WithWriter is given.
func NewPrinter(opts ...Option) *Printer {
	p := &Printer{w: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}
	if p.plain {
		p.styles = nil
	}
	return p
}

// Print writes text as is.
func (p *Printer) Print(text string) { p.emit(SemanticPlain, text, false) }

// Println writes text and a newline.
func (p *Printer) Println(text string) { p.emit(SemanticPlain, text, true) }

// Info writes an informational line.
func (p *Printer) Info(text string) { p.emit(SemanticInfo, text, true) }

// Success writes a line for an unchanged or accepted result.
func (p *Printer) Success(text string) { p.emit(SemanticSuccess, text, true) }

// Warning writes a line for a changed result.
func (p *Printer) Warning(text string) { p.emit(SemanticWarning, text, true) }

// Error writes a line for a failure.
func (p *Printer) Error(text string) { p.emit(SemanticError, text, true) }

// Header writes a section header.
func (p *Printer) Header(text string) { p.emit(SemanticHeader, text, true) }

// Styled returns text rendered with the style of semantic without writing
// it, so callers can compose a line from several parts. Plain printers
// return text unchanged.
func (p *Printer) Styled(semantic SemanticType, text string) string {
	if p.styles == nil {
		return text
	}
	return p.styles.GetStyle(semantic).Render(text)
}

// Writer returns the destination.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// IsStylable reports whether output is styled.
func (p *Printer) IsStylable() bool {
	return p.styles != nil
}

// emit writes one message. The status glyph belongs to the message, so it is
// added here and never by Styled.
func (p *Printer) emit(semantic SemanticType, text string, newline bool) {
	out := plainPrefix(semantic) + text
	if p.styles != nil {
		out = p.styles.GetStyle(semantic).Render(out)
	}
	if newline && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, out)
}
