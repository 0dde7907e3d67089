package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	snaperrors "snaptest/internal/errors"
	"snaptest/internal/registry"
)

func newTestEngine(t *testing.T, mutate func(*Options)) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	opts := Options{Shell: "sh", WorkDir: t.TempDir(), ScratchRoot: root}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts), root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestExecute_CapturesStdoutAndStderrSeparately(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res, err := e.Execute(context.Background(), registry.TestCase{Name: "echo", Command: "echo hello"})
	require.NoError(t, err)
	defer e.Discard(res)

	assert.Equal(t, "hello\n", readFile(t, res.StdoutPath))
	assert.Equal(t, "", readFile(t, res.StderrPath))
	assert.False(t, res.ProcessFailed)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, filepath.Join(res.ScratchDir, StdoutFile), res.StdoutPath)
	assert.Equal(t, filepath.Join(res.ScratchDir, StderrFile), res.StderrPath)

	res2, err := e.Execute(context.Background(), registry.TestCase{Name: "both", Command: "echo out; echo err >&2"})
	require.NoError(t, err)
	defer e.Discard(res2)

	assert.Equal(t, "out\n", readFile(t, res2.StdoutPath))
	assert.Equal(t, "err\n", readFile(t, res2.StderrPath))
}

func TestExecute_NonZeroExitIsData(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res, err := e.Execute(context.Background(), registry.TestCase{Name: "fail", Command: "echo partial; exit 3"})
	require.NoError(t, err)
	defer e.Discard(res)

	assert.True(t, res.ProcessFailed)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "partial\n", readFile(t, res.StdoutPath))
}

func TestExecute_ExportsEnvironment(t *testing.T) {
	e, _ := newTestEngine(t, func(o *Options) {
		o.RunID = "run-1"
		o.Env = map[string]string{"GREETING": "hi", EnvName: "overridden"}
	})

	cmd := `printf '%s|%s|%s|%s|%s' "$SNAPTEST" "$SNAPTEST_NAME" "$SNAPTEST_SCRATCH" "$SNAPTEST_RUN_ID" "$GREETING"`
	res, err := e.Execute(context.Background(), registry.TestCase{Name: "env", Command: cmd})
	require.NoError(t, err)
	defer e.Discard(res)

	want := "1|env|" + res.ScratchDir + "|run-1|hi"
	assert.Equal(t, want, readFile(t, res.StdoutPath))
	assert.True(t, filepath.IsAbs(res.ScratchDir))
}

func TestExecute_CommandMayWriteIntoScratch(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res, err := e.Execute(context.Background(), registry.TestCase{
		Name:    "artifact",
		Command: `mkdir -p "$SNAPTEST_SCRATCH/sub" && echo data > "$SNAPTEST_SCRATCH/sub/file.txt"`,
	})
	require.NoError(t, err)
	defer e.Discard(res)

	assert.Equal(t, "data\n", readFile(t, filepath.Join(res.ScratchDir, "sub", "file.txt")))
}

func TestExecute_UsesWorkDir(t *testing.T) {
	work := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(work, "marker"), []byte("here\n"), 0644))
	e, _ := newTestEngine(t, func(o *Options) { o.WorkDir = work })

	res, err := e.Execute(context.Background(), registry.TestCase{Name: "cat", Command: "cat marker"})
	require.NoError(t, err)
	defer e.Discard(res)

	assert.Equal(t, "here\n", readFile(t, res.StdoutPath))
}

func TestExecute_ScratchDirsAreUnique(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	tc := registry.TestCase{Name: "same", Command: "true"}

	a, err := e.Execute(context.Background(), tc)
	require.NoError(t, err)
	defer e.Discard(a)
	b, err := e.Execute(context.Background(), tc)
	require.NoError(t, err)
	defer e.Discard(b)

	assert.NotEqual(t, a.ScratchDir, b.ScratchDir)
}

func TestExecute_LaunchError(t *testing.T) {
	e, root := newTestEngine(t, func(o *Options) { o.Shell = "/nonexistent/interpreter" })

	res, err := e.Execute(context.Background(), registry.TestCase{Name: "x", Command: "echo 1"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, snaperrors.ELaunch, snaperrors.GetCode(err))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory must be removed after a launch failure")
}

func TestExecute_Timeout(t *testing.T) {
	e, root := newTestEngine(t, func(o *Options) { o.Timeout = 100 * time.Millisecond })

	start := time.Now()
	_, err := e.Execute(context.Background(), registry.TestCase{Name: "slow", Command: "sleep 5"})
	require.Error(t, err)
	assert.Equal(t, snaperrors.ETimeout, snaperrors.GetCode(err))
	assert.Less(t, time.Since(start), 4*time.Second)

	entries, _ := os.ReadDir(root)
	assert.Empty(t, entries)
}

func TestExecute_Cancelled(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, registry.TestCase{Name: "c", Command: "sleep 5"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscard(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res, err := e.Execute(context.Background(), registry.TestCase{Name: "d", Command: "true"})
	require.NoError(t, err)

	e.Discard(res)
	_, statErr := os.Stat(res.ScratchDir)
	assert.True(t, os.IsNotExist(statErr))

	e.Discard(nil)
}
