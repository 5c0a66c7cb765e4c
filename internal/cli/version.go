package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bi := buildinfo.Current()
		fmt.Fprintf(cmd.OutOrStdout(), "crewdeck %s\n", bi.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", bi.CommitHash)
		fmt.Fprintf(cmd.OutOrStdout(), "built:  %s\n", bi.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
