package output

import (
	"bytes"
	"strings"
)

// captureBuffer collects printer output.
type captureBuffer struct {
	bytes.Buffer
}

func (c *captureBuffer) Lines() []string {
	if c.Len() == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(c.String(), "\n"), "\n")
}

func newPlainPrinter() (*Printer, *captureBuffer) {
	buf := &captureBuffer{}
	return NewPrinter(WithWriter(buf), PlainText()), buf
}

// bracketStyles renders "[semantic]text[/semantic]" so tests can see which
// style was applied.
type bracketStyles struct {
	unavailable bool
}

func (b bracketStyles) GetStyle(semantic SemanticType) TextStyle {
	return bracketStyle(semantic)
}

func (b bracketStyles) IsAvailable() bool { return !b.unavailable }

type bracketStyle SemanticType

func (s bracketStyle) Render(text string) string {
	return "[" + string(s) + "]" + text + "[/" + string(s) + "]"
}
