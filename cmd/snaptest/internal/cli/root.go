// Package cli provides command-line interface setup for snaptest.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"snaptest/internal/config"
	snaperrors "snaptest/internal/errors"
	"snaptest/internal/logger"
)

// App represents the snaptest CLI application
type App struct {
	Viper      *viper.Viper
	ConfigPath string
	LogLevel   string
	LogFile    string
	NoColor    bool

	// Stdin feeds the accept prompt; nil means os.Stdin.
	Stdin io.ReadCloser
	// IsTerminal reports whether the prompt can be shown.
	IsTerminal func() bool
}

// NewApp creates a new snaptest CLI application
func NewApp() *App {
	return &App{
		Viper: config.NewViper(),
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// CreateRootCommand creates and configures the root command
func (app *App) CreateRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "snaptest",
		Short: "Snapshot-based regression test runner",
		Long: `snaptest runs named shell commands, captures their output into a directory
tree and compares it against a stored baseline. Changed output is shown as a
diff and can be accepted as the new baseline.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := logger.Configure(app.LogLevel, app.LogFile); err != nil {
				return snaperrors.Wrap(snaperrors.EUsage, "cannot open log file", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return snaperrors.Wrap(snaperrors.EUsage, "invalid flags", err)
	})

	// Add global flags
	rootCmd.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", "", "Config file (default is ./"+config.DefaultConfigName+".yaml)")
	rootCmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&app.LogFile, "log-file", "", "Write logs to a file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "Disable colored output")

	// Add all subcommands
	app.addQueryCommands(rootCmd)
	app.addRunCommand(rootCmd)
	app.addCleanCommand(rootCmd)
	app.addVersionCommand(rootCmd)

	return rootCmd
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return snaperrors.Wrap(snaperrors.EUsage, fmt.Sprintf("usage: %s", cmd.UseLine()), err)
		}
		return nil
	}
}
