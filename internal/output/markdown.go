package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/tools/txtar"
)

// archiveMarkdown renders ar as markdown: the comment as a list and one
// fenced block per file under a heading with its path.
func archiveMarkdown(ar *txtar.Archive) string {
	var b strings.Builder
	lines := strings.Split(strings.TrimSuffix(string(ar.Comment), "\n"), "\n")
	if len(lines) > 0 && lines[0] != "" {
		fmt.Fprintf(&b, "# %s\n\n", lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(&b, "- `%s`\n", line)
		}
		if len(lines) > 1 {
			b.WriteString("\n")
		}
	}
	for _, f := range ar.Files {
		fmt.Fprintf(&b, "## %s\n\n", f.Name)
		if len(f.Data) == 0 {
			b.WriteString("*(empty)*\n\n")
			continue
		}
		fence := codeFence(f.Data)
		b.WriteString(fence + "\n")
		b.Write(f.Data)
		if f.Data[len(f.Data)-1] != '\n' {
			b.WriteString("\n")
		}
		b.WriteString(fence + "\n\n")
	}
	return b.String()
}

// codeFence returns a backtick fence longer than any backtick run in data.
func codeFence(data []byte) string {
	longest, run := 0, 0
	for _, c := range data {
		if c == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}

// PrettyArchive prints a baseline archive as rendered markdown. Styled
// printers get glamour's auto style, plain printers the notty style. Lines
// are never wrapped so content stays intact.
func (r *Reporter) PrettyArchive(ar *txtar.Archive) error {
	style := glamour.WithStylePath("notty")
	if r.printer.IsStylable() {
		style = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(0))
	if err != nil {
		return err
	}
	out, err := renderer.Render(archiveMarkdown(ar))
	if err != nil {
		return err
	}
	r.printer.Print(out)
	return nil
}
