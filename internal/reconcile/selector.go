package reconcile

import (
	"context"
	"errors"
	"io"
	"strings"

	"snaptest/internal/registry"
)

// Selector decides which changed cases are accepted after a pass.
type Selector interface {
	// Select returns the subset of changed (sorted names) to accept.
	Select(ctx context.Context, changed []string, rep Reporter) ([]string, error)
	// Interactive reports whether the decision came from user input.
	Interactive() bool
}

// PatternSource supplies accept patterns. It returns io.EOF when no more
// input is available.
type PatternSource interface {
	ReadPattern(ctx context.Context) (string, error)
}

// PatternFunc adapts a function to PatternSource.
type PatternFunc func(ctx context.Context) (string, error)

// ReadPattern calls f.
func (f PatternFunc) ReadPattern(ctx context.Context) (string, error) {
	return f(ctx)
}

// Patterns returns a PatternSource yielding exprs in order, then io.EOF.
func Patterns(exprs ...string) PatternSource {
	i := 0
	return PatternFunc(func(context.Context) (string, error) {
		if i >= len(exprs) {
			return "", io.EOF
		}
		i++
		return exprs[i-1], nil
	})
}

type acceptAll struct{}

// AcceptAll accepts every changed case.
func AcceptAll() Selector { return acceptAll{} }

func (acceptAll) Select(_ context.Context, changed []string, _ Reporter) ([]string, error) {
	return changed, nil
}

func (acceptAll) Interactive() bool { return false }

type acceptNone struct{}

// AcceptNone never accepts anything.
func AcceptNone() Selector { return acceptNone{} }

func (acceptNone) Select(context.Context, []string, Reporter) ([]string, error) {
	return nil, nil
}

func (acceptNone) Interactive() bool { return false }

type byPattern struct {
	src PatternSource
}

// AcceptByPattern reports the changed cases as a numbered list and accepts
// those whose name matches a regular expression read from src. An empty
// response or end of input accepts nothing; an invalid expression is
// reported and asked again.
func AcceptByPattern(src PatternSource) Selector {
	return &byPattern{src: src}
}

func (s *byPattern) Interactive() bool { return true }

func (s *byPattern) Select(ctx context.Context, changed []string, rep Reporter) ([]string, error) {
	if len(changed) == 0 {
		return nil, nil
	}
	rep.ChangedList(changed)

	for {
		expr, err := s.src.ReadPattern(ctx)
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		expr = strings.TrimSpace(expr)
		if expr == "" {
			return nil, nil
		}
		re, err := registry.CompilePattern(expr)
		if err != nil {
			rep.InvalidPattern(expr, err)
			continue
		}

		var selected []string
		for _, name := range changed {
			if re.MatchString(name) {
				selected = append(selected, name)
			}
		}
		return selected, nil
	}
}
