// Package reconcile drives snapshot passes: it executes selected test cases,
// compares their output with the stored baselines and accepts changes
// according to a Selector.
package reconcile

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/tools/txtar"

	"snaptest/internal/engine"
	snaperrors "snaptest/internal/errors"
	"snaptest/internal/logger"
	"snaptest/internal/registry"
	"snaptest/internal/snapshot"
)

// Controller ties the registry, engine and store together.
type Controller struct {
	registry *registry.Registry
	engine   *engine.Engine
	store    *snapshot.Store
	reporter Reporter
	log      *log.Logger
}

// New creates a Controller. A nil reporter discards progress.
func New(reg *registry.Registry, eng *engine.Engine, store *snapshot.Store, rep Reporter) *Controller {
	if rep == nil {
		rep = NopReporter{}
	}
	return &Controller{
		registry: reg,
		engine:   eng,
		store:    store,
		reporter: rep,
		log:      logger.NewStyledLogger("reconcile"),
	}
}

// List summarizes the baselines of cases matching pattern without executing
// or writing anything.
func (c *Controller) List(pattern string) ([]ListEntry, error) {
	re, err := registry.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	names := c.registry.Resolve(re)
	entries := make([]ListEntry, 0, len(names))
	for _, name := range names {
		tc, _ := c.registry.Lookup(name)
		sum, err := c.store.Summarize(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ListEntry{TestCase: tc, Summary: sum})
	}
	return entries, nil
}

// OutputDir returns the baseline directory of name. It creates nothing.
func (c *Controller) OutputDir(name string) (string, error) {
	if _, ok := c.registry.Lookup(name); !ok {
		return "", notFound(name)
	}
	return c.store.PathFor(name), nil
}

// Show returns the baseline of name as a txtar archive.
func (c *Controller) Show(name string) (*txtar.Archive, error) {
	if _, ok := c.registry.Lookup(name); !ok {
		return nil, notFound(name)
	}
	return c.store.Archive(name)
}

// Clean repairs leftovers of interrupted accepts in the output directory.
func (c *Controller) Clean() ([]string, error) {
	return c.store.Clean()
}

// Run executes every case matching pattern in name order, classifies it and
// hands the changed set to sel. Launch failures, timeouts and unreadable
// output trees are isolated to their case. A cancelled ctx or a store failure aborts the pass; accepted
// baselines stay accepted.
func (c *Controller) Run(ctx context.Context, pattern string, sel Selector) (*RunReport, error) {
	re, err := registry.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	report := &RunReport{RunID: uuid.NewString()}
	eng := c.engine.ForRun(report.RunID)
	names := c.registry.Resolve(re)
	c.log.Debug("Starting pass", "run", report.RunID, "cases", len(names))

	// Scratch directories of changed cases are held until the decision.
	pending := make(map[string]*engine.ExecutionResult)
	defer func() {
		for _, res := range pending {
			eng.Discard(res)
		}
	}()

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run %s interrupted: %w", report.RunID, err)
		}
		tc, _ := c.registry.Lookup(name)

		result, err := c.runCase(ctx, eng, tc, pending)
		if err != nil {
			return nil, err
		}
		report.Cases = append(report.Cases, result)
		c.reporter.CaseFinished(result)
	}

	var changed []string
	for _, r := range report.Cases {
		if r.State == StateChanged {
			c.reporter.ChangedDetail(r)
			changed = append(changed, r.Name())
		}
	}

	selected, err := sel.Select(ctx, changed, c.reporter)
	if err != nil {
		return nil, err
	}
	accept := make(map[string]bool, len(selected))
	for _, name := range selected {
		accept[name] = true
	}

	acceptedState := StateAcceptedByPolicy
	if sel.Interactive() {
		acceptedState = StateAcceptedByPrompt
	}

	for i := range report.Cases {
		r := &report.Cases[i]
		if r.State != StateChanged {
			continue
		}
		if !accept[r.Name()] {
			r.State = StateLeftChanged
			continue
		}
		if err := c.store.Accept(r.Name(), pending[r.Name()].ScratchDir); err != nil {
			return nil, err
		}
		r.State = acceptedState
		c.log.Info("Accepted", "test", r.Name(), "path", r.BaselinePath)
	}

	c.reporter.Summary(report)
	return report, nil
}

// runCase executes and classifies one case. Changed results keep their
// scratch directory in pending.
func (c *Controller) runCase(ctx context.Context, eng *engine.Engine, tc registry.TestCase, pending map[string]*engine.ExecutionResult) (CaseResult, error) {
	result := CaseResult{TestCase: tc, State: StatePending, BaselinePath: c.store.PathFor(tc.Name)}

	exec, err := eng.Execute(ctx, tc)
	if err != nil {
		if ctx.Err() != nil {
			return result, err
		}
		switch snaperrors.GetCode(err) {
		case snaperrors.ELaunch, snaperrors.ETimeout:
			c.log.Warn("Capture failed", "test", tc.Name, "error", err)
			result.State = StateCaptureFailed
			result.Err = err
			return result, nil
		default:
			return result, err
		}
	}
	result.ExitCode = exec.ExitCode
	result.Duration = exec.Duration

	outcome, err := c.store.Compare(tc.Name, exec.ScratchDir)
	if err != nil {
		eng.Discard(exec)
		return result, err
	}

	switch outcome.Kind {
	case snapshot.Unchanged:
		result.State = StateUnchanged
		eng.Discard(exec)
	case snapshot.CaptureFailed:
		c.log.Warn("Capture failed", "test", tc.Name, "error", outcome.Err)
		result.State = StateCaptureFailed
		result.Err = outcome.Err
		eng.Discard(exec)
	default:
		result.State = StateChanged
		result.Diff = outcome.Diff
		pending[tc.Name] = exec
	}
	return result, nil
}

func notFound(name string) error {
	return snaperrors.NewWithDetails(snaperrors.ENotFound,
		fmt.Sprintf("no test named %q", name),
		map[string]string{"name": name})
}
