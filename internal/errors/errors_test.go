package errors

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(EUsage, "bad flag")
	assert.Equal(t, "E_USAGE: bad flag", err.Error())
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(EConfig, "cannot read config", cause)

	assert.Equal(t, "E_CONFIG: cannot read config", err.Error())
	assert.ErrorIs(t, err, cause)

	se, ok := AsSnapError(err)
	require.True(t, ok)
	assert.Equal(t, EConfig, se.Code)
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil error", nil, ""},
		{"snap error", New(EParse, "x"), EParse},
		{"wrapped by fmt", fmt.Errorf("outer: %w", New(ENotFound, "y")), ENotFound},
		{"plain error", errors.New("plain"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"usage", New(EUsage, "x"), 2},
		{"not found", New(ENotFound, "x"), 1},
		{"plain", errors.New("x"), 1},
		{"explicit", WithExitCode(errors.New("3 changed"), 3), 3},
		{"explicit wrapped", fmt.Errorf("run: %w", WithExitCode(nil, 7)), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, WrapWithDetails(ELaunch, "cannot start shell", errors.New("not found"),
		map[string]string{"test": "a", "shell": "nosuch"}))

	want := "error_code: E_LAUNCH\ncannot start shell: not found\n  shell: nosuch\n  test: a\n"
	assert.Equal(t, want, buf.String())
}

func TestPrintPlainError(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, errors.New("boom"))
	assert.Equal(t, "boom\n", buf.String())

	buf.Reset()
	Print(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestDetailsAreCopied(t *testing.T) {
	details := map[string]string{"k": "v"}
	err := NewWithDetails(EStore, "x", details)
	details["k"] = "changed"

	se, ok := AsSnapError(err)
	require.True(t, ok)
	assert.Equal(t, "v", se.Details["k"])

	empty, _ := AsSnapError(NewWithDetails(EStore, "x", map[string]string{}))
	assert.Nil(t, empty.Details)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "plain", Describe(errors.New("plain")))
	assert.Equal(t, "no such test", Describe(New(ENotFound, "no such test")))
	assert.Equal(t, "cannot launch: exec failed",
		Describe(Wrap(ELaunch, "cannot launch", errors.New("exec failed"))))
}
