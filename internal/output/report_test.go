package output

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/tools/txtar"

	snaperrors "snaptest/internal/errors"
	"snaptest/internal/reconcile"
	"snaptest/internal/registry"
	"snaptest/internal/snapshot"
)

func newTestReporter() (*Reporter, *captureBuffer) {
	p, buf := newPlainPrinter()
	return NewReporter(p, nil), buf
}

func caseResult(name string, state reconcile.State) reconcile.CaseResult {
	return reconcile.CaseResult{TestCase: registry.TestCase{Name: name}, State: state}
}

func TestReporter_CaseFinished(t *testing.T) {
	r, buf := newTestReporter()

	r.CaseFinished(caseResult("a", reconcile.StateUnchanged))

	changed := caseResult("b", reconcile.StateChanged)
	changed.Diff = &snapshot.TreeDiff{NoBaseline: true}
	r.CaseFinished(changed)

	failed := caseResult("c", reconcile.StateCaptureFailed)
	failed.Err = snaperrors.Wrap(snaperrors.ELaunch, "cannot launch nosh for c", errors.New("no such file"))
	r.CaseFinished(failed)

	assert.Equal(t, []string{
		"✓ unchanged a",
		"⚠ changed   b (new)",
		"✗ failed    c: cannot launch nosh for c: no such file",
	}, buf.Lines())
}

func TestReporter_ChangedDetailShowsOldNewAndDiff(t *testing.T) {
	r, buf := newTestReporter()

	res := caseResult("greet", reconcile.StateChanged)
	res.ExitCode = 1
	res.Diff = &snapshot.TreeDiff{Entries: []snapshot.DiffEntry{{
		Path:    "stdout",
		Change:  snapshot.Modified,
		OldKind: snapshot.KindFile,
		NewKind: snapshot.KindFile,
		OldSize: 12,
		NewSize: 12,
		Old:     []byte("hello\nworld\n"),
		New:     []byte("hello\nthere\n"),
	}}}
	r.ChangedDetail(res)

	want := strings.Join([]string{
		"",
		"=== greet ===",
		"exit status 1",
		"--- stdout (modified)",
		"Old:",
		"   1→hello",
		"   2→world",
		"New:",
		"   1→hello",
		"   2→there",
		"Diff:",
		"  hello",
		"- world",
		"+ there",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}

func TestReporter_ChangedDetailAddedAndBinary(t *testing.T) {
	r, buf := newTestReporter()

	res := caseResult("new", reconcile.StateChanged)
	res.Diff = &snapshot.TreeDiff{NoBaseline: true, Entries: []snapshot.DiffEntry{
		{Path: "out", Change: snapshot.Added, NewKind: snapshot.KindDir},
		{Path: "out/blob", Change: snapshot.Added, NewKind: snapshot.KindFile, NewSize: 3, New: []byte{0, 1, 2}},
		{Path: "stderr", Change: snapshot.Added, NewKind: snapshot.KindFile},
		{Path: "stdout", Change: snapshot.Added, NewKind: snapshot.KindFile, NewSize: 3, New: []byte("hi\n")},
	}}
	r.ChangedDetail(res)

	out := buf.String()
	assert.Contains(t, out, "=== new (no baseline) ===")
	assert.Contains(t, out, "--- out (added dir)\n--- out/blob")
	assert.Contains(t, out, "binary content (absent -> 3 bytes)")
	assert.Contains(t, out, "--- stderr (added)\nNew:\n   (empty)\n")
	assert.Contains(t, out, "--- stdout (added)\nNew:\n   1→hi\n")
	assert.NotContains(t, out, "Old:")
	assert.NotContains(t, out, "Diff:")
}

func TestReporter_ChangedDetailLargeFile(t *testing.T) {
	r, buf := newTestReporter()

	res := caseResult("big", reconcile.StateChanged)
	res.Diff = &snapshot.TreeDiff{Entries: []snapshot.DiffEntry{{
		Path: "stdout", Change: snapshot.Modified,
		OldKind: snapshot.KindFile, NewKind: snapshot.KindFile,
		OldSize: 1 << 20, NewSize: 1<<20 + 1,
	}}}
	r.ChangedDetail(res)

	assert.Contains(t, buf.String(), "content not shown (1048576 bytes -> 1048577 bytes)")
}

func TestReporter_ChangedDetailSpecialFile(t *testing.T) {
	r, buf := newTestReporter()

	res := caseResult("fifo", reconcile.StateChanged)
	res.Diff = &snapshot.TreeDiff{Entries: []snapshot.DiffEntry{{
		Path: "pipe", Change: snapshot.TypeChanged,
		OldKind: snapshot.KindOther, NewKind: snapshot.KindFile, NewSize: 4,
		New: []byte("data"),
	}}}
	r.ChangedDetail(res)

	assert.Contains(t, buf.String(), "content not shown (special file -> 4 bytes)")
	assert.NotContains(t, buf.String(), "New:")
}

func TestDiffer_ElidesLongUnchangedRuns(t *testing.T) {
	p, buf := newPlainPrinter()
	d := NewDiffer(p)

	var oldLines, newLines []string
	for i := range 20 {
		line := "line" + string(rune('a'+i))
		oldLines = append(oldLines, line)
		newLines = append(newLines, line)
	}
	newLines[10] = "CHANGED"
	d.printLineDiff(strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n")

	out := buf.String()
	assert.Contains(t, out, "  ... 7 unchanged lines\n")
	assert.Contains(t, out, "- linek\n+ CHANGED\n")
	assert.Contains(t, out, "  ... 6 unchanged lines\n")
	assert.NotContains(t, out, "trailing newline")
}

func TestDiffer_TrailingNewline(t *testing.T) {
	p, buf := newPlainPrinter()
	d := NewDiffer(p)

	d.printLineDiff("a\n", "a")
	assert.Contains(t, buf.String(), `\ trailing newline differs`)
}

func TestReporter_ChangedList(t *testing.T) {
	r, buf := newTestReporter()
	r.ChangedList([]string{"alpha", "beta"})

	out := buf.String()
	assert.Contains(t, out, "Changed tests:\n")
	assert.Contains(t, out, "1. alpha")
	assert.Contains(t, out, "2. beta")
}

func TestReporter_InvalidPattern(t *testing.T) {
	r, buf := newTestReporter()
	_, err := registry.CompilePattern("[")
	r.InvalidPattern("[", err)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, `✗ invalid pattern "[": `), out)
	assert.True(t, strings.HasSuffix(out, " (empty response accepts none)\n"), out)
}

func TestReporter_Summary(t *testing.T) {
	r, buf := newTestReporter()
	report := &reconcile.RunReport{Cases: []reconcile.CaseResult{
		caseResult("a", reconcile.StateUnchanged),
		caseResult("b", reconcile.StateAcceptedByPrompt),
		caseResult("c", reconcile.StateLeftChanged),
		caseResult("d", reconcile.StateCaptureFailed),
	}}
	r.Summary(report)
	assert.Equal(t, "\n⚠ 4 tests: 1 unchanged, 1 accepted, 1 left changed, 1 failed\n", buf.String())

	buf.Reset()
	r.Summary(&reconcile.RunReport{Cases: []reconcile.CaseResult{caseResult("a", reconcile.StateAcceptedByPolicy)}})
	assert.Equal(t, "\n✓ 1 tests: 0 unchanged, 1 accepted, 0 left changed, 0 failed\n", buf.String())
}

func TestReporter_List(t *testing.T) {
	r, buf := newTestReporter()
	mod := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	r.List([]reconcile.ListEntry{
		{
			TestCase: registry.TestCase{Name: "a"},
			Summary:  &snapshot.Summary{Name: "a", Path: "/out/a", Exists: true, ModTime: mod, Fingerprint: "0123456789ab", Preview: "hello"},
		},
		{
			TestCase: registry.TestCase{Name: "longer"},
			Summary:  &snapshot.Summary{Name: "longer", Path: "/out/longer"},
		},
	})

	assert.Equal(t, []string{
		"a       /out/a  2026-01-02 03:04:05  0123456789ab  hello",
		"longer  /out/longer  (no baseline)",
	}, buf.Lines())

	buf.Reset()
	r.List(nil)
	assert.Equal(t, "ℹ no matching tests\n", buf.String())
}

func TestReporter_ArchiveAndCleaned(t *testing.T) {
	r, buf := newTestReporter()
	r.Archive(&txtar.Archive{Comment: []byte("baseline a\n"), Files: []txtar.File{{Name: "stdout", Data: []byte("1\n")}}})
	assert.Equal(t, "baseline a\n-- stdout --\n1\n", buf.String())

	buf.Reset()
	r.Cleaned(nil)
	r.Cleaned([]string{"/out/.snaptest-stage.x"})
	assert.Equal(t, "ℹ nothing to clean\ncleaned /out/.snaptest-stage.x\n", buf.String())
}
