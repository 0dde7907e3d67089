// Package main provides the snaptest CLI, a snapshot-based regression test
// runner. Each test is a named shell command whose captured output tree is
// compared against a stored baseline.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"snaptest/cmd/snaptest/internal/cli"
	snaperrors "snaptest/internal/errors"
	"snaptest/internal/logger"
)

// exitInterrupted is the conventional status for a SIGINT-terminated process.
const exitInterrupted = 130

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() { _ = logger.Close() }()

	app := cli.NewApp()
	rootCmd := app.CreateRootCommand()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		snaperrors.Print(os.Stderr, err)
		return exitInterrupted
	}

	var ec *snaperrors.ExitCodeError
	if !errors.As(err, &ec) || ec.Err != nil {
		snaperrors.Print(os.Stderr, err)
	}
	return snaperrors.ExitCode(err)
}
