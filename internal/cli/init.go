package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize crewdeck and register the current directory",
	Long:  `Write the default global config and register the current directory as a single-project workspace.`,
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().String("name", "", "Workspace name (defaults to the directory name)")
	initCmd.Flags().Bool("no-workspace", false, "Only write the global config, register nothing")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config ready at %s\n", filepath.Join(config.Dir(), "config.json"))

	skip, _ := cmd.Flags().GetBool("no-workspace")
	if skip {
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = filepath.Base(cwd)
	}

	_, workspaces := services()
	all, err := workspaces.List()
	if err != nil {
		return err
	}
	for _, w := range all {
		for _, p := range w.Projects {
			if p.Path == cwd {
				fmt.Fprintf(cmd.OutOrStdout(), "Directory already registered in workspace %q (%s)\n", w.Name, w.ID)
				return nil
			}
		}
	}

	w := workspace.Workspace{
		Name:     name,
		Projects: []workspace.Project{{Path: cwd}},
	}
	if err := workspaces.Create(&w); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered workspace %q (%s) for %s\n", w.Name, w.ID, cwd)
	fmt.Fprintln(cmd.OutOrStdout(), "Run "+styleBoldWhite+"crewdeck serve"+colorReset+" to start the panel.")
	return nil
}
