package output

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"snaptest/internal/snapshot"
)

// diffContext is the number of unchanged lines kept around each change.
const diffContext = 3

// Differ renders the Old vs New view of changed baseline entries.
type Differ struct {
	printer *Printer
}

// NewDiffer creates a Differ writing through printer.
func NewDiffer(printer *Printer) *Differ {
	return &Differ{printer: printer}
}

// ShowEntry prints one changed entry: a header, the numbered Old and New
// content and a line diff.
func (d *Differ) ShowEntry(e snapshot.DiffEntry) {
	d.printer.Println(d.printer.Styled(SemanticHeader, fmt.Sprintf("--- %s (%s)", e.Path, describeChange(e))))

	if e.OldKind == snapshot.KindDir || e.NewKind == snapshot.KindDir {
		return
	}
	if !e.Shown() {
		d.printer.Println(d.printer.Styled(SemanticMuted,
			fmt.Sprintf("    content not shown (%s -> %s)", sizeOf(e.OldKind, e.OldSize), sizeOf(e.NewKind, e.NewSize))))
		return
	}
	if !printable(e.Old) || !printable(e.New) {
		d.printer.Println(d.printer.Styled(SemanticMuted,
			fmt.Sprintf("    binary content (%s -> %s)", sizeOf(e.OldKind, e.OldSize), sizeOf(e.NewKind, e.NewSize))))
		return
	}

	if e.OldKind != snapshot.KindNone {
		d.printer.Println("Old:")
		d.printNumberedLines(string(e.Old))
	}
	if e.NewKind != snapshot.KindNone {
		d.printer.Println("New:")
		d.printNumberedLines(string(e.New))
	}
	if e.Change == snapshot.Modified {
		d.printer.Println("Diff:")
		d.printLineDiff(string(e.Old), string(e.New))
	}
}

// printNumberedLines prints lines with line numbers.
func (d *Differ) printNumberedLines(content string) {
	lines := splitLines(content)
	if len(lines) == 0 {
		d.printer.Println(d.printer.Styled(SemanticMuted, "   (empty)"))
		return
	}
	for i, line := range lines {
		d.printer.Println(d.printer.Styled(SemanticMuted, fmt.Sprintf("%4d→", i+1)) + line)
	}
}

// printLineDiff prints a unified-style line diff with limited context.
func (d *Differ) printLineDiff(oldText, newText string) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for i, diff := range diffs {
		chunk := splitLines(diff.Text)
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			for _, line := range chunk {
				d.printer.Println(d.printer.Styled(SemanticRemoved, "- "+line))
			}
		case diffmatchpatch.DiffInsert:
			for _, line := range chunk {
				d.printer.Println(d.printer.Styled(SemanticAdded, "+ "+line))
			}
		case diffmatchpatch.DiffEqual:
			d.printContext(chunk, i > 0, i < len(diffs)-1)
		}
	}

	if strings.HasSuffix(oldText, "\n") != strings.HasSuffix(newText, "\n") {
		d.printer.Println(d.printer.Styled(SemanticMuted, `\ trailing newline differs`))
	}
}

// printContext prints unchanged lines, eliding the middle of long runs.
// before and after report whether a change precedes or follows the run.
func (d *Differ) printContext(lines []string, before, after bool) {
	head, tail := 0, 0
	if before {
		head = diffContext
	}
	if after {
		tail = diffContext
	}
	if head+tail >= len(lines) {
		for _, line := range lines {
			d.printer.Println("  " + line)
		}
		return
	}
	for _, line := range lines[:head] {
		d.printer.Println("  " + line)
	}
	d.printer.Println(d.printer.Styled(SemanticMuted, fmt.Sprintf("  ... %d unchanged lines", len(lines)-head-tail)))
	for _, line := range lines[len(lines)-tail:] {
		d.printer.Println("  " + line)
	}
}

func describeChange(e snapshot.DiffEntry) string {
	switch e.Change {
	case snapshot.TypeChanged:
		return fmt.Sprintf("%s: %s -> %s", e.Change, e.OldKind, e.NewKind)
	case snapshot.Added:
		if e.NewKind != snapshot.KindFile {
			return fmt.Sprintf("%s %s", e.Change, e.NewKind)
		}
	case snapshot.Removed:
		if e.OldKind != snapshot.KindFile {
			return fmt.Sprintf("%s %s", e.Change, e.OldKind)
		}
	}
	return e.Change.String()
}

func sizeOf(kind snapshot.EntryKind, size int64) string {
	switch kind {
	case snapshot.KindNone:
		return "absent"
	case snapshot.KindDir:
		return "dir"
	case snapshot.KindOther:
		return "special file"
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

// splitLines splits content into lines, ignoring a final newline.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func printable(b []byte) bool {
	return utf8.Valid(b) && !strings.ContainsRune(string(b), 0)
}
