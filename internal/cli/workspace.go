package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/workspace"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage workspaces",
}

var workspaceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a workspace",
	Args:  cobra.NoArgs,
	RunE:  runWorkspaceAdd,
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workspaces",
	Args:  cobra.NoArgs,
	RunE:  runWorkspaceList,
}

var workspaceProjectAddCmd = &cobra.Command{
	Use:   "project-add <workspace>",
	Short: "Add a project root to a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceProjectAdd,
}

func init() {
	workspaceAddCmd.Flags().String("name", "", "Workspace name (required)")
	workspaceAddCmd.Flags().StringSlice("path", nil, "Project root(s) to include")
	_ = workspaceAddCmd.MarkFlagRequired("name")

	workspaceProjectAddCmd.Flags().String("path", "", "Project root to add (required)")
	workspaceProjectAddCmd.Flags().String("project-name", "", "Project display name (defaults to the directory name)")
	_ = workspaceProjectAddCmd.MarkFlagRequired("path")

	workspaceCmd.AddCommand(workspaceAddCmd, workspaceListCmd, workspaceProjectAddCmd)
	rootCmd.AddCommand(workspaceCmd)
}

func runWorkspaceAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	paths, _ := cmd.Flags().GetStringSlice("path")

	w := workspace.Workspace{Name: name}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving project path %q: %w", p, err)
		}
		w.Projects = append(w.Projects, workspace.Project{Path: abs})
	}

	_, workspaces := services()
	if err := workspaces.Create(&w); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered workspace %q (%s) with %d project(s)\n", w.Name, w.ID, len(w.Projects))
	return nil
}

func runWorkspaceList(cmd *cobra.Command, args []string) error {
	_, workspaces := services()
	all, err := workspaces.List()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No workspaces registered.")
		return nil
	}
	for _, w := range all {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d project(s)\n", w.ID, w.Name, len(w.Projects))
		for _, p := range w.Projects {
			fmt.Fprintf(cmd.OutOrStdout(), "\t%s\t%s\n", p.Name, p.Path)
		}
	}
	return nil
}

func runWorkspaceProjectAdd(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	name, _ := cmd.Flags().GetString("project-name")

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving project path %q: %w", path, err)
	}

	_, workspaces := services()
	w, err := resolveWorkspace(workspaces, args[0])
	if err != nil {
		return err
	}
	if err := workspaces.AddProject(w.ID, workspace.Project{Name: name, Path: abs}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added project %s to workspace %q\n", abs, w.Name)
	return nil
}
