package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"snaptest/internal/version"
)

// addVersionCommand adds the version command
func (app *App) addVersionCommand(rootCmd *cobra.Command) {
	var detailed bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the version of snaptest with build information.`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			text := version.GetFormattedVersion()
			if detailed {
				text = version.GetDetailedVersion()
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}

	versionCmd.Flags().BoolVar(&detailed, "detailed", false, "Show detailed version information")
	rootCmd.AddCommand(versionCmd)
}
