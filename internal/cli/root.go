package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/buildinfo"
	"github.com/crewdeck/crewdeck/internal/debug"
)

const (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"

	// Combined styles
	styleBoldCyan  = "\033[1;36m"
	styleBoldWhite = "\033[1;37m"
)

var rootCmd = &cobra.Command{
	Use:   "crewdeck",
	Short: "Coding-agent control panel",
	Long: colorBold + `
   ___                   ___          _
  / __|_ _ _____ __ __  |   \ ___ __ | |__
 | (__| '_/ -_) V  V /  | |) / -_) _|| / /
  \___|_| \___|\_/\_/   |___/\___\__||_\_\` + colorReset + `

  ` + styleBoldCyan + `Crewdeck` + colorReset + ` v` + buildinfo.Current().Version + `

  Turn a ticket backlog into supervised coding-agent sessions.
  Crewdeck sequences tickets by priority, launches one agent at a
  time per workspace, and reconciles what the agents report back.

  Run ` + styleBoldWhite + `crewdeck serve` + colorReset + ` to start the panel, or ` + styleBoldWhite + `crewdeck workspace add` + colorReset + ` to register a workspace.

` + colorBold + `Getting Started:` + colorReset + `
  crewdeck workspace add --name my-app --path ~/code/my-app
  crewdeck ticket add <workspace> --title "Fix login" --priority high
  crewdeck serve                  Start the panel server
  crewdeck ticket list <workspace>

` + colorBold + `More Info:` + colorReset + `
  https://github.com/crewdeck/crewdeck`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if isAgentContext() || !isatty.IsTerminal(os.Stdout.Fd()) {
			return cmd.Help()
		}

		// When run with no subcommand in a terminal, show a brief overview.
		_, workspaces := services()
		all, err := workspaces.List()
		if err != nil || len(all) == 0 {
			fmt.Println(colorYellow + "No workspaces registered yet." + colorReset)
			fmt.Println("Run " + styleBoldWhite + "crewdeck workspace add" + colorReset + " to register one, then " + styleBoldWhite + "crewdeck serve" + colorReset + ".")
			return nil
		}
		fmt.Printf("%d workspace(s) registered:\n", len(all))
		for _, w := range all {
			fmt.Printf("  %s%s%s  %s (%d project(s))\n", colorCyan, w.ID, colorReset, w.Name, len(w.Projects))
		}
		fmt.Println("\nRun " + styleBoldWhite + "crewdeck serve" + colorReset + " to start the panel.")
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// isAgentContext reports whether we are running inside an agent session that
// crewdeck itself spawned. Commands that launch agents refuse to nest.
func isAgentContext() bool {
	return os.Getenv("CREWDECK_TICKET_ID") != "" || os.Getenv("CREWDECK_AGENT") != ""
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.crewdeck/debug/")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init()
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s[debug]%s logging to %s\n", colorDim, colorReset, logPath)
		bi := buildinfo.Current()
		debug.LogKV("cli", "crewdeck starting",
			"version", bi.Version,
			"commit", bi.CommitHash,
			"build_date", bi.BuildDate,
			"pid", os.Getpid(),
			"command", cmd.Name(),
			"args", args,
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}
