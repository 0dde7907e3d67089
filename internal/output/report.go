package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/tools/txtar"

	snaperrors "snaptest/internal/errors"
	"snaptest/internal/reconcile"
)

// Reporter renders reconciliation progress and the results of the read-only
// commands. It implements reconcile.Reporter.
type Reporter struct {
	printer *Printer
	differ  *Differ
	theme   *Theme
}

var _ reconcile.Reporter = (*Reporter)(nil)

// NewReporter creates a Reporter. theme may be nil for plain output.
func NewReporter(printer *Printer, theme *Theme) *Reporter {
	return &Reporter{printer: printer, differ: NewDiffer(printer), theme: theme}
}

// Printer returns the underlying printer.
func (r *Reporter) Printer() *Printer {
	return r.printer
}

// CaseFinished prints the classification of one case.
func (r *Reporter) CaseFinished(res reconcile.CaseResult) {
	switch res.State {
	case reconcile.StateUnchanged:
		r.printer.Success(fmt.Sprintf("%-9s %s", "unchanged", res.Name()))
	case reconcile.StateChanged:
		line := fmt.Sprintf("%-9s %s", "changed", res.Name())
		if res.Diff != nil && res.Diff.NoBaseline {
			line += " (new)"
		}
		r.printer.Warning(line)
	case reconcile.StateCaptureFailed:
		r.printer.Error(fmt.Sprintf("%-9s %s: %s", "failed", res.Name(), snaperrors.Describe(res.Err)))
	default:
		r.printer.Println(fmt.Sprintf("%-9s %s", strings.ToLower(res.State.String()), res.Name()))
	}
}

// ChangedDetail prints Old vs New for every differing entry of a changed case.
func (r *Reporter) ChangedDetail(res reconcile.CaseResult) {
	r.printer.Println("")
	header := fmt.Sprintf("=== %s ===", res.Name())
	if res.Diff != nil && res.Diff.NoBaseline {
		header = fmt.Sprintf("=== %s (no baseline) ===", res.Name())
	}
	r.printer.Header(header)
	if res.ExitCode != 0 {
		r.printer.Println(r.printer.Styled(SemanticMuted, fmt.Sprintf("exit status %d", res.ExitCode)))
	}
	if res.Diff == nil {
		return
	}
	for _, e := range res.Diff.Entries {
		r.differ.ShowEntry(e)
	}
}

// ChangedList prints the numbered list of changed cases shown before the prompt.
func (r *Reporter) ChangedList(names []string) {
	r.printer.Println("")
	r.printer.Println("Changed tests:")
	var style *lipgloss.Style
	if r.theme != nil && r.printer.IsStylable() {
		s := r.theme.ListStyle()
		style = &s
	}
	r.printer.Println(NumberedList(names, style))
}

// InvalidPattern reports a prompt response that is not a valid expression.
func (r *Reporter) InvalidPattern(_ string, err error) {
	r.printer.Error(snaperrors.Describe(err) + " (empty response accepts none)")
}

// Summary prints the final tally of a pass.
func (r *Reporter) Summary(report *reconcile.RunReport) {
	text := fmt.Sprintf("%d tests: %d unchanged, %d accepted, %d left changed, %d failed",
		len(report.Cases),
		report.Count(reconcile.StateUnchanged),
		report.Accepted(),
		report.Count(reconcile.StateLeftChanged),
		report.Count(reconcile.StateCaptureFailed))

	r.printer.Println("")
	if report.Unresolved() == 0 {
		r.printer.Success(text)
	} else {
		r.printer.Warning(text)
	}
}

// List prints one line per case: name, baseline path, last modification,
// fingerprint and preview.
func (r *Reporter) List(entries []reconcile.ListEntry) {
	if len(entries) == 0 {
		r.printer.Info("no matching tests")
		return
	}

	width := 0
	for _, e := range entries {
		width = max(width, lipgloss.Width(e.TestCase.Name))
	}

	for _, e := range entries {
		name := e.TestCase.Name + strings.Repeat(" ", width-lipgloss.Width(e.TestCase.Name))
		sum := e.Summary
		if !sum.Exists {
			r.printer.Println(fmt.Sprintf("%s  %s  %s", name,
				r.printer.Styled(SemanticPath, sum.Path),
				r.printer.Styled(SemanticWarning, "(no baseline)")))
			continue
		}
		r.printer.Println(fmt.Sprintf("%s  %s  %s  %s  %s", name,
			r.printer.Styled(SemanticPath, sum.Path),
			sum.ModTime.Format(time.DateTime),
			r.printer.Styled(SemanticMuted, sum.Fingerprint),
			sum.Preview))
	}
}

// Archive prints a baseline archive in txtar format.
func (r *Reporter) Archive(ar *txtar.Archive) {
	r.printer.Print(string(txtar.Format(ar)))
}

// Cleaned reports the leftovers handled by clean.
func (r *Reporter) Cleaned(paths []string) {
	if len(paths) == 0 {
		r.printer.Info("nothing to clean")
		return
	}
	for _, p := range paths {
		r.printer.Println("cleaned " + r.printer.Styled(SemanticPath, p))
	}
}
