package reconcile

import (
	"time"

	"snaptest/internal/registry"
	"snaptest/internal/snapshot"
)

// State is the position of one test case in a reconciliation pass.
type State int

const (
	// StatePending - Selected for the pass but not executed yet
	StatePending State = iota
	// StateUnchanged - Output matched the baseline
	StateUnchanged
	// StateChanged - Output differs from the baseline and awaits a decision
	StateChanged
	// StateAcceptedByPolicy - Changed output written to the baseline by --auto-update
	StateAcceptedByPolicy
	// StateAcceptedByPrompt - Changed output written to the baseline after the prompt selected it
	StateAcceptedByPrompt
	// StateLeftChanged - Changed output discarded; the baseline is untouched
	StateLeftChanged
	// StateCaptureFailed - The command could not be launched or timed out
	StateCaptureFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateUnchanged:
		return "Unchanged"
	case StateChanged:
		return "Changed"
	case StateAcceptedByPolicy:
		return "AcceptedByPolicy"
	case StateAcceptedByPrompt:
		return "AcceptedByPrompt"
	case StateLeftChanged:
		return "LeftChanged"
	case StateCaptureFailed:
		return "CaptureFailed"
	default:
		return "Unknown"
	}
}

// Accepted reports whether s wrote a new baseline.
func (s State) Accepted() bool {
	return s == StateAcceptedByPolicy || s == StateAcceptedByPrompt
}

// CaseResult is the outcome of one test case in a pass.
type CaseResult struct {
	TestCase registry.TestCase
	State    State
	// Diff is set when the case was classified as changed.
	Diff *snapshot.TreeDiff
	// Err is set for StateCaptureFailed.
	Err error
	// ExitCode of the command; a non-zero exit is recorded output, not a failure.
	ExitCode int
	Duration time.Duration
	// BaselinePath is where the case's baseline lives.
	BaselinePath string
}

// Name returns the test case name.
func (r CaseResult) Name() string {
	return r.TestCase.Name
}

// RunReport collects the results of a pass in name order.
type RunReport struct {
	RunID string
	Cases []CaseResult
}

// Accepted returns the number of cases that got a new baseline.
func (r *RunReport) Accepted() int {
	n := 0
	for _, c := range r.Cases {
		if c.State.Accepted() {
			n++
		}
	}
	return n
}

// Count returns the number of cases in state s.
func (r *RunReport) Count(s State) int {
	n := 0
	for _, c := range r.Cases {
		if c.State == s {
			n++
		}
	}
	return n
}

// Unresolved counts cases left in a non-clean state: changes that were not
// accepted plus capture failures.
func (r *RunReport) Unresolved() int {
	return r.Count(StateLeftChanged) + r.Count(StateChanged) + r.Count(StateCaptureFailed)
}

// ListEntry is one line of the list operation.
type ListEntry struct {
	TestCase registry.TestCase
	Summary  *snapshot.Summary
}

// Reporter receives progress of a pass. The controller calls it in order:
// CaseFinished per case, ChangedDetail per changed case, then the selector may
// call ChangedList and InvalidPattern, and finally Summary.
type Reporter interface {
	CaseFinished(result CaseResult)
	ChangedDetail(result CaseResult)
	ChangedList(names []string)
	InvalidPattern(expr string, err error)
	Summary(report *RunReport)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) CaseFinished(CaseResult)      {}
func (NopReporter) ChangedDetail(CaseResult)     {}
func (NopReporter) ChangedList([]string)         {}
func (NopReporter) InvalidPattern(string, error) {}
func (NopReporter) Summary(*RunReport)           {}
