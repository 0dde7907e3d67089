package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

const promptText = "accept pattern (empty for none)> "

// promptSource reads accept patterns line by line from the terminal.
type promptSource struct {
	rl *readline.Instance
}

// newPromptSource opens a line reader on stdin, or on in when it is set.
func newPromptSource(in io.ReadCloser, out io.Writer) (*promptSource, error) {
	cfg := &readline.Config{
		Prompt:                 promptText,
		Stdout:                 out,
		HistoryLimit:           -1,
		DisableAutoSaveHistory: true,
	}
	if in != nil {
		cfg.Stdin = in
		cfg.FuncIsTerminal = func() bool { return false }
		cfg.FuncMakeRaw = func() error { return nil }
		cfg.FuncExitRaw = func() error { return nil }
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return &promptSource{rl: rl}, nil
}

// ReadPattern returns the next response. Ctrl-C cancels the pass; end of
// input is reported as io.EOF.
func (p *promptSource) ReadPattern(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := p.rl.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return "", context.Canceled
	case err != nil:
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Close releases the terminal.
func (p *promptSource) Close() error {
	return p.rl.Close()
}
