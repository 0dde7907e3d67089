package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"snaptest/internal/config"
	"snaptest/internal/engine"
	snaperrors "snaptest/internal/errors"
	"snaptest/internal/logger"
	"snaptest/internal/output"
	"snaptest/internal/reconcile"
	"snaptest/internal/registry"
	"snaptest/internal/snapshot"
)

// maxExitCode keeps the unresolved count clear of shell-reserved statuses.
const maxExitCode = 125

// session holds the services built from one loaded configuration.
type session struct {
	cfg      *config.Config
	ctrl     *reconcile.Controller
	reporter *output.Reporter
}

// open loads the configuration and definition sources and wires the
// controller. Nothing is executed or written.
func (app *App) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(app.Viper, app.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded configuration", "file", cfg.File, "output_dir", cfg.OutputDir, "sources", len(cfg.Sources))

	reg, err := registry.Load(cfg.Sources)
	if err != nil {
		return nil, err
	}
	for _, w := range reg.Warnings() {
		logger.Warn(w.String())
	}

	eng := engine.New(engine.Options{
		Shell:       cfg.Shell,
		WorkDir:     cfg.WorkDir,
		ScratchRoot: cfg.ScratchDir,
		Timeout:     cfg.Timeout,
		Env:         cfg.Env,
	})

	w := cmd.OutOrStdout()
	theme := output.NewTheme(w, app.NoColor)
	opts := []output.Option{output.WithWriter(w), output.WithStyles(theme)}
	if app.NoColor {
		opts = append(opts, output.PlainText())
	}
	rep := output.NewReporter(output.NewPrinter(opts...), theme)

	return &session{
		cfg:      cfg,
		ctrl:     reconcile.New(reg, eng, snapshot.New(cfg.OutputDir), rep),
		reporter: rep,
	}, nil
}

// addQueryCommands adds the read-only commands
func (app *App) addQueryCommands(rootCmd *cobra.Command) {
	// List command
	listCmd := &cobra.Command{
		Use:   "list [pattern]",
		Short: "List tests and their baselines",
		Long: `List every test whose name matches pattern (a regular expression searched
anywhere in the name) with its baseline path, last modification, content
fingerprint and a preview of its stdout. Nothing is executed.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd)
			if err != nil {
				return err
			}
			entries, err := s.ctrl.List(firstArg(args))
			if err != nil {
				return err
			}
			s.reporter.List(entries)
			return nil
		},
	}

	// Output dir command
	outputDirCmd := &cobra.Command{
		Use:   "output-dir <name>",
		Short: "Print the baseline directory of a test",
		Long: `Print the absolute path of the baseline directory of the named test.
The directory may not exist yet; it is never created.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd)
			if err != nil {
				return err
			}
			dir, err := s.ctrl.OutputDir(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), dir)
			return err
		},
	}

	// Show command
	var pretty bool
	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a baseline as a txtar archive",
		Long: `Print the stored baseline of the named test as a txtar archive, one
section per file. Directories and symlinks are listed in the archive comment.

--pretty renders the baseline as markdown instead, one code block per file.
The txtar form is byte-exact and meant for scripts.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd)
			if err != nil {
				return err
			}
			ar, err := s.ctrl.Show(args[0])
			if err != nil {
				return err
			}
			if pretty {
				if err := s.reporter.PrettyArchive(ar); err != nil {
					return snaperrors.Wrap(snaperrors.EInternal, "cannot render baseline", err)
				}
				return nil
			}
			s.reporter.Archive(ar)
			return nil
		},
	}
	showCmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "Render the baseline as markdown")

	rootCmd.AddCommand(listCmd, outputDirCmd, showCmd)
}

// addRunCommand adds the reconciliation command
func (app *App) addRunCommand(rootCmd *cobra.Command) {
	var autoUpdate, noUpdate bool

	runCmd := &cobra.Command{
		Use:   "run [pattern]",
		Short: "Run tests and reconcile their baselines",
		Long: `Run every test whose name matches pattern, compare its output tree with the
stored baseline and decide which changed baselines to replace.

By default the changed tests are listed and a pattern is read from the
terminal; matching tests are accepted and an empty response accepts none.
--auto-update accepts every change, --no-update accepts none.

The exit status is the number of tests left changed or failed, capped at 125.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if autoUpdate && noUpdate {
				return snaperrors.New(snaperrors.EUsage, "--auto-update and --no-update are mutually exclusive")
			}
			s, err := app.open(cmd)
			if err != nil {
				return err
			}

			sel, closeSel, err := app.selector(s, autoUpdate, noUpdate)
			if err != nil {
				return err
			}
			defer closeSel()

			report, err := s.ctrl.Run(cmd.Context(), firstArg(args), sel)
			if err != nil {
				return err
			}
			if n := report.Unresolved(); n > 0 {
				return snaperrors.WithExitCode(nil, min(n, maxExitCode))
			}
			return nil
		},
	}

	runCmd.Flags().BoolVarP(&autoUpdate, "auto-update", "u", false, "Accept every changed baseline")
	runCmd.Flags().BoolVarP(&noUpdate, "no-update", "n", false, "Leave every changed baseline untouched")
	runCmd.Flags().Duration("timeout", 0, "Per-test timeout, overrides the config file (0 disables)")
	runCmd.Flags().String("shell", "", "Interpreter for test commands, overrides the config file")
	_ = app.Viper.BindPFlag(config.KeyTimeout, runCmd.Flags().Lookup("timeout"))
	_ = app.Viper.BindPFlag(config.KeyShell, runCmd.Flags().Lookup("shell"))
	rootCmd.AddCommand(runCmd)
}

// selector picks the accept policy. The prompt needs a terminal on stdin;
// without one the run falls back to --no-update.
func (app *App) selector(s *session, autoUpdate, noUpdate bool) (reconcile.Selector, func(), error) {
	nop := func() {}
	switch {
	case autoUpdate:
		return reconcile.AcceptAll(), nop, nil
	case noUpdate:
		return reconcile.AcceptNone(), nop, nil
	case app.Stdin == nil && !app.IsTerminal():
		return noTerminal{printer: s.reporter.Printer()}, nop, nil
	}

	src, err := newPromptSource(app.Stdin, s.reporter.Printer().Writer())
	if err != nil {
		return nil, nil, snaperrors.Wrap(snaperrors.EInternal, "cannot open prompt", err)
	}
	return reconcile.AcceptByPattern(src), func() { _ = src.Close() }, nil
}

// noTerminal accepts nothing and explains why when there was something to accept.
type noTerminal struct {
	printer *output.Printer
}

func (n noTerminal) Select(_ context.Context, changed []string, _ reconcile.Reporter) ([]string, error) {
	if len(changed) > 0 {
		n.printer.Warning("stdin is not a terminal, leaving changed baselines untouched (use --auto-update to accept)")
	}
	return nil, nil
}

func (noTerminal) Interactive() bool { return false }

// addCleanCommand adds the repair command
func (app *App) addCleanCommand(rootCmd *cobra.Command) {
	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Repair leftovers of interrupted accepts",
		Long: `Remove staging directories left behind by an interrupted accept and restore
or remove the previous baselines that were moved aside.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd)
			if err != nil {
				return err
			}
			cleaned, err := s.ctrl.Clean()
			if err != nil {
				return err
			}
			s.reporter.Cleaned(cleaned)
			return nil
		},
	}

	rootCmd.AddCommand(cleanCmd)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
