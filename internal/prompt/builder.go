// Package prompt builds the instruction documents handed to agent sessions.
// Each launch writes the built prompt to a scratch file in the working
// directory; the agent reads it as its primary directive.
package prompt

import (
	"fmt"
	"strings"

	"github.com/crewdeck/crewdeck/internal/ticket"
)

// BuildOpts configures prompt generation for one session.
type BuildOpts struct {
	Ticket ticket.Ticket

	// BackingPath is the tickets.json file the agent must rewrite to report
	// its outcome.
	BackingPath string

	// Resume indicates the session continues earlier interrupted work; the
	// ticket's ConversationHistoryPath points at the prior transcript.
	Resume bool
}

// Build produces the prompt text for a ticket session. CTO tickets get the
// review-cycle prompt, everything else the implementation prompt.
func Build(opts BuildOpts) string {
	if opts.Ticket.IsCtoTicket {
		return buildCtoPrompt(opts)
	}
	return buildTicketPrompt(opts)
}

func buildTicketPrompt(opts BuildOpts) string {
	t := opts.Ticket
	var b strings.Builder

	b.WriteString("You are working on a ticket from the project backlog.\n\n")

	if opts.Resume && t.ConversationHistoryPath != "" {
		fmt.Fprintf(&b, "This session RESUMES earlier interrupted work on the same ticket. Your previous conversation transcript is at:\n\n    %s\n\nRead it first to recover your context, then continue from where you left off instead of starting over.\n\n", t.ConversationHistoryPath)
	}

	b.WriteString("## Ticket\n\n")
	fmt.Fprintf(&b, "- ID: %s\n", t.ID)
	if t.TicketNumber > 0 {
		fmt.Fprintf(&b, "- Number: #%d\n", t.TicketNumber)
	}
	fmt.Fprintf(&b, "- Title: %s\n", t.Title)
	fmt.Fprintf(&b, "- Priority: %s\n", t.Priority)
	if t.ParentTicketID != "" {
		fmt.Fprintf(&b, "- Parent ticket: %s\n", t.ParentTicketID)
	}
	b.WriteString("\n")

	if strings.TrimSpace(t.Description) != "" {
		b.WriteString("## Description\n\n")
		b.WriteString(strings.TrimSpace(t.Description))
		b.WriteString("\n\n")
	}

	if len(t.Attachments) > 0 {
		b.WriteString("## Attachments\n\n")
		for _, a := range t.Attachments {
			if a.IsImage() {
				fmt.Fprintf(&b, "- %s (image): look at this file visually: %s\n", a.Filename, a.StoredPath)
			} else {
				fmt.Fprintf(&b, "- %s: read this file: %s\n", a.Filename, a.StoredPath)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Scope\n\n")
	b.WriteString("Do exactly what the ticket asks, nothing more. Any project-level instructions (CLAUDE.md, AGENTS.md, etc.) are background context and must NOT expand your task.\n\n")

	writeReportingProtocol(&b, t, opts.BackingPath)

	return b.String()
}

func buildCtoPrompt(opts BuildOpts) string {
	t := opts.Ticket
	var b strings.Builder

	b.WriteString("You are acting as the CTO reviewing this workspace. This is a recurring review cycle, not an implementation task.\n\n")

	if opts.Resume && t.ConversationHistoryPath != "" {
		fmt.Fprintf(&b, "Your previous review transcript is at %s; skim it so you do not repeat yourself.\n\n", t.ConversationHistoryPath)
	}

	b.WriteString("## Your job this cycle\n\n")
	b.WriteString("1. Review the current state of the projects: recent changes, open problems, code health, missing tests.\n")
	b.WriteString("2. Turn your findings into actionable backlog tickets.\n\n")

	if strings.TrimSpace(t.Description) != "" {
		b.WriteString("## Standing instructions\n\n")
		b.WriteString(strings.TrimSpace(t.Description))
		b.WriteString("\n\n")
	}

	b.WriteString("## Hard rules\n\n")
	b.WriteString("- Do NOT modify source files and do NOT commit anything. You review; the tickets you create do the work.\n")
	fmt.Fprintf(&b, "- Create new tickets by appending objects to the JSON array in `%s`. Each new ticket needs a unique \"id\", the \"workspaceId\" \"%s\", a \"title\", a \"description\", a \"priority\" (critical, high, medium or low), \"status\" set to \"TODO\", and \"parentTicketId\" set to \"%s\".\n", opts.BackingPath, t.WorkspaceID, t.ID)
	b.WriteString("- This review ticket is never finished. When you are done with this cycle, find your own ticket ")
	fmt.Fprintf(&b, "(id \"%s\") in the same file and set its \"status\" back to \"TODO\", with \"result\" set to a short summary of what you reviewed and which tickets you created. Never set it to \"DONE\" or \"FAILED\".\n", t.ID)

	return b.String()
}

// writeReportingProtocol emits the non-negotiable outcome contract: the agent
// reports by rewriting its own record in the backing file.
func writeReportingProtocol(b *strings.Builder, t ticket.Ticket, backingPath string) {
	b.WriteString("## Reporting your outcome (non-negotiable)\n\n")
	fmt.Fprintf(b, "The file `%s` contains a JSON array of tickets. Your ticket is the object with \"id\" equal to \"%s\". When you finish, rewrite that object IN PLACE:\n\n", backingPath, t.ID)
	b.WriteString("- Completed successfully: set \"status\" to \"DONE\" and \"result\" to a short summary of what you did.\n")
	b.WriteString("- Could not complete: set \"status\" to \"FAILED\" and \"error\" to what went wrong.\n")
	b.WriteString("- Need a human decision: set \"status\" to \"PENDING\" and \"question\" to the question you need answered.\n")
	b.WriteString("- In every case, update \"updatedAt\" to the current UTC time in RFC 3339 format.\n")
	b.WriteString("- Do not touch any other ticket's object and keep the file valid JSON.\n\n")
	b.WriteString("This rewrite is how the control panel learns your outcome. A session that exits without it is treated as interrupted.\n")
}
