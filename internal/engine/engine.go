// Package engine runs a single test case's command in a fresh scratch
// directory and captures its standard output and standard error to files.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	snaperrors "snaptest/internal/errors"
	"snaptest/internal/logger"
	"snaptest/internal/registry"
)

// Environment variables exported to every test command.
const (
	EnvMarker  = "SNAPTEST"
	EnvName    = "SNAPTEST_NAME"
	EnvScratch = "SNAPTEST_SCRATCH"
	EnvRunID   = "SNAPTEST_RUN_ID"
)

// Names of the capture files inside a scratch directory.
const (
	StdoutFile = "stdout"
	StderrFile = "stderr"
)

// ExecutionResult describes one finished execution.
type ExecutionResult struct {
	TestCase   registry.TestCase
	ScratchDir string
	StdoutPath string
	StderrPath string
	ExitCode   int
	// ProcessFailed reports a non-zero exit status. It is data, not an error.
	ProcessFailed bool
	Duration      time.Duration
}

// Options configures an Engine.
type Options struct {
	// Shell is invoked as `<Shell> -c <command>`.
	Shell string
	// WorkDir is the working directory of every command.
	WorkDir string
	// ScratchRoot is where scratch directories are allocated; empty means os.TempDir().
	ScratchRoot string
	// Timeout bounds each command; zero disables it.
	Timeout time.Duration
	// Env is merged over the inherited process environment.
	Env map[string]string
	// RunID identifies the reconciliation pass.
	RunID string
}

// Engine executes test cases.
type Engine struct {
	opts Options
	log  *log.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Shell == "" {
		opts.Shell = "sh"
	}
	return &Engine{opts: opts, log: logger.NewStyledLogger("engine")}
}

// ForRun returns a copy of e that exports runID as SNAPTEST_RUN_ID.
func (e *Engine) ForRun(runID string) *Engine {
	opts := e.opts
	opts.RunID = runID
	return &Engine{opts: opts, log: e.log}
}

// Execute runs tc in a newly allocated scratch directory. A non-zero exit is
// reported through ExecutionResult.ProcessFailed. An error is returned only
// when the output could not be captured: the interpreter could not be
// launched (E_LAUNCH), the timeout expired (E_TIMEOUT) or ctx was cancelled.
// The scratch directory is removed whenever an error is returned.
func (e *Engine) Execute(ctx context.Context, tc registry.TestCase) (result *ExecutionResult, err error) {
	scratch, err := os.MkdirTemp(e.opts.ScratchRoot, "snaptest-"+tc.Name+"-*")
	if err != nil {
		return nil, snaperrors.Wrap(snaperrors.EInternal, "cannot create scratch directory", err)
	}
	if scratch, err = filepath.Abs(scratch); err != nil {
		_ = os.RemoveAll(scratch)
		return nil, snaperrors.Wrap(snaperrors.EInternal, "cannot resolve scratch directory", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(scratch)
		}
	}()

	stdoutPath := filepath.Join(scratch, StdoutFile)
	stderrPath := filepath.Join(scratch, StderrFile)

	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return nil, snaperrors.Wrap(snaperrors.EInternal, "cannot create stdout capture", err)
	}
	defer func() { _ = stdout.Close() }()

	stderr, err := os.Create(stderrPath)
	if err != nil {
		return nil, snaperrors.Wrap(snaperrors.EInternal, "cannot create stderr capture", err)
	}
	defer func() { _ = stderr.Close() }()

	runCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, e.opts.Shell, "-c", tc.Command)
	cmd.Dir = e.opts.WorkDir
	cmd.Env = e.environ(tc, scratch)
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// Run in its own process group so the whole tree dies on timeout or cancel.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	if ctx.Err() != nil {
		return nil, fmt.Errorf("execution of %s cancelled: %w", tc.Name, ctx.Err())
	}

	e.log.Debug("Executing", "test", tc.Name, "path", scratch)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return nil, snaperrors.WrapWithDetails(snaperrors.ELaunch,
			"cannot launch "+e.opts.Shell+" for "+tc.Name, err,
			map[string]string{"test": tc.Name, "shell": e.opts.Shell})
	}
	waitErr := cmd.Wait()
	duration := time.Since(start)

	if ctxErr := runCtx.Err(); ctxErr != nil {
		if ctx.Err() == nil && errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, snaperrors.WrapWithDetails(snaperrors.ETimeout,
				fmt.Sprintf("%s timed out after %s", tc.Name, e.opts.Timeout), ctxErr,
				map[string]string{"test": tc.Name})
		}
		return nil, fmt.Errorf("execution of %s cancelled: %w", tc.Name, ctx.Err())
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, snaperrors.WrapWithDetails(snaperrors.ELaunch,
				"cannot collect exit status of "+tc.Name, waitErr,
				map[string]string{"test": tc.Name, "shell": e.opts.Shell})
		}
		exitCode = exitErr.ExitCode()
	}

	e.log.Debug("Executed", "test", tc.Name, "exit", exitCode, "duration", duration)

	return &ExecutionResult{
		TestCase:      tc,
		ScratchDir:    scratch,
		StdoutPath:    stdoutPath,
		StderrPath:    stderrPath,
		ExitCode:      exitCode,
		ProcessFailed: exitCode != 0,
		Duration:      duration,
	}, nil
}

// Discard removes the scratch directory of result. It is safe on nil.
func (e *Engine) Discard(result *ExecutionResult) {
	if result == nil || result.ScratchDir == "" {
		return
	}
	if err := os.RemoveAll(result.ScratchDir); err != nil {
		e.log.Warn("Cannot remove scratch directory", "path", result.ScratchDir, "error", err)
	}
}

// environ builds the command environment: the inherited environment, then
// the configured extras, then the snaptest variables. Later entries win.
func (e *Engine) environ(tc registry.TestCase, scratch string) []string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range e.opts.Env {
		env[k] = v
	}

	env[EnvMarker] = "1"
	env[EnvName] = tc.Name
	env[EnvScratch] = scratch
	if e.opts.RunID != "" {
		env[EnvRunID] = e.opts.RunID
	} else {
		delete(env, EnvRunID)
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
