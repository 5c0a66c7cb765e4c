package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/theme"
	"github.com/crewdeck/crewdeck/internal/ticket"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Manage tickets",
}

var ticketAddCmd = &cobra.Command{
	Use:   "add <workspace>",
	Short: "Create a ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketAdd,
}

var ticketListCmd = &cobra.Command{
	Use:   "list <workspace>",
	Short: "List tickets in a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketList,
}

var ticketShowCmd = &cobra.Command{
	Use:   "show <workspace> <id>",
	Short: "Show a ticket",
	Args:  cobra.ExactArgs(2),
	RunE:  runTicketShow,
}

var ticketDoneCmd = &cobra.Command{
	Use:   "done <workspace> <id>",
	Short: "Mark a ticket DONE manually",
	Args:  cobra.ExactArgs(2),
	RunE:  runTicketDone,
}

var ticketRmCmd = &cobra.Command{
	Use:   "rm <workspace> <id>",
	Short: "Delete a ticket",
	Args:  cobra.ExactArgs(2),
	RunE:  runTicketRm,
}

func init() {
	ticketAddCmd.Flags().String("title", "", "Ticket title (required)")
	ticketAddCmd.Flags().String("description", "", "Ticket description")
	ticketAddCmd.Flags().String("priority", string(ticket.PriorityMedium), "Priority: critical, high, medium, low")
	ticketAddCmd.Flags().String("project", "", "Target project id (defaults to the whole workspace)")
	ticketAddCmd.Flags().Bool("cto", false, "Mark as the recurring self-review ticket")
	_ = ticketAddCmd.MarkFlagRequired("title")

	ticketDoneCmd.Flags().String("result", "", "Result summary to record")

	ticketCmd.AddCommand(ticketAddCmd, ticketListCmd, ticketShowCmd, ticketDoneCmd, ticketRmCmd)
	rootCmd.AddCommand(ticketCmd)
}

func parsePriority(raw string) (ticket.Priority, error) {
	p := ticket.Priority(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case ticket.PriorityCritical, ticket.PriorityHigh, ticket.PriorityMedium, ticket.PriorityLow:
		return p, nil
	}
	return "", fmt.Errorf("invalid priority %q, expected critical, high, medium or low", raw)
}

func runTicketAdd(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	rawPriority, _ := cmd.Flags().GetString("priority")
	projectID, _ := cmd.Flags().GetString("project")
	cto, _ := cmd.Flags().GetBool("cto")

	priority, err := parsePriority(rawPriority)
	if err != nil {
		return err
	}

	tickets, workspaces := services()
	w, err := resolveWorkspace(workspaces, args[0])
	if err != nil {
		return err
	}

	t := ticket.Ticket{
		WorkspaceID:     w.ID,
		TargetProjectID: projectID,
		Title:           title,
		Description:     description,
		Priority:        priority,
		IsCtoTicket:     cto,
	}
	if err := tickets.Create(&t); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created ticket #%d (%s) in workspace %q\n", t.TicketNumber, t.ID, w.Name)
	return nil
}

var (
	ticketTitleStyle = lipgloss.NewStyle().Bold(true)
	ticketDimStyle   = lipgloss.NewStyle().Foreground(theme.ColorOverlay0)
)

func runTicketList(cmd *cobra.Command, args []string) error {
	tickets, workspaces := services()
	w, err := resolveWorkspace(workspaces, args[0])
	if err != nil {
		return err
	}
	all, err := tickets.List(w.ID)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tickets.")
		return nil
	}
	for _, t := range all {
		tag := ""
		if t.IsCtoTicket {
			tag = ticketDimStyle.Render(" [cto]")
		}
		if t.Disabled {
			tag += ticketDimStyle.Render(" [disabled]")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s #%-4d %-8s %s%s %s\n",
			theme.StatusIndicator(string(t.Status)),
			t.TicketNumber,
			t.Priority,
			ticketTitleStyle.Render(t.Title),
			tag,
			ticketDimStyle.Render(t.ID),
		)
	}
	return nil
}

func runTicketShow(cmd *cobra.Command, args []string) error {
	tickets, workspaces := services()
	w, err := resolveWorkspace(workspaces, args[0])
	if err != nil {
		return err
	}
	t, err := tickets.Get(w.ID, args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s #%d\n", theme.StatusIndicator(string(t.Status)), ticketTitleStyle.Render(t.Title), t.TicketNumber)
	fmt.Fprintf(out, "ID:       %s\n", t.ID)
	fmt.Fprintf(out, "Status:   %s\n", t.Status)
	fmt.Fprintf(out, "Priority: %s\n", t.Priority)
	if t.TargetProjectID != "" {
		fmt.Fprintf(out, "Project:  %s\n", t.TargetProjectID)
	}
	if t.ParentTicketID != "" {
		fmt.Fprintf(out, "Parent:   %s\n", t.ParentTicketID)
	}
	if t.Description != "" {
		fmt.Fprintf(out, "\n%s\n", t.Description)
	}
	if t.Result != "" {
		fmt.Fprintf(out, "\nResult: %s\n", t.Result)
	}
	if t.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", t.Error)
	}
	if t.Question != "" {
		fmt.Fprintf(out, "\nQuestion: %s\n", t.Question)
	}
	return nil
}

func runTicketDone(cmd *cobra.Command, args []string) error {
	result, _ := cmd.Flags().GetString("result")

	tickets, workspaces := services()
	w, err := resolveWorkspace(workspaces, args[0])
	if err != nil {
		return err
	}
	t, err := tickets.Get(w.ID, args[1])
	if err != nil {
		return err
	}
	if t.IsCtoTicket {
		return fmt.Errorf("the self-review ticket never reaches DONE")
	}
	err = tickets.Update(w.ID, t.ID, func(t *ticket.Ticket) {
		t.Status = ticket.StatusDone
		if result != "" {
			t.Result = result
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked ticket #%d DONE\n", t.TicketNumber)
	return nil
}

func runTicketRm(cmd *cobra.Command, args []string) error {
	tickets, workspaces := services()
	w, err := resolveWorkspace(workspaces, args[0])
	if err != nil {
		return err
	}
	if err := tickets.Delete(args[1], w.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted ticket %s\n", args[1])
	return nil
}
