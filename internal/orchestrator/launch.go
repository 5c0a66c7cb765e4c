package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/debug"
	"github.com/crewdeck/crewdeck/internal/events"
	"github.com/crewdeck/crewdeck/internal/prompt"
	"github.com/crewdeck/crewdeck/internal/theme"
	"github.com/crewdeck/crewdeck/internal/ticket"
)

// Environment variables exported into every agent session so the process can
// locate its own ticket record without in-band instructions.
const (
	EnvTicketID    = "CREWDECK_TICKET_ID"
	EnvTicketsPath = "CREWDECK_TICKETS_PATH"
)

// insideAgentMarkers are unset before spawning so a panel started from inside
// an agent session does not confuse the child agent.
var insideAgentMarkers = []string{"CREWDECK_AGENT", "CLAUDECODE", "CLAUDE_CODE_ENTRYPOINT"}

// Launch starts an agent session for a ticket. If a live session is already
// bound, it focuses that terminal instead. Resolution failures abort with no
// side effects; everything after the prompt write is best-effort and never
// rolls back.
func (o *Orchestrator) Launch(t ticket.Ticket) {
	if t.Disabled {
		return
	}
	if b, ok := o.bindingFor(t.ID); ok && o.term.IsLive(b.sessionID) {
		o.term.Activate(b.sessionID)
		return
	}

	cwd, err := o.resolveWorkdir(t)
	if err != nil || cwd == "" {
		debug.LogKV("orch", "launch aborted: no working directory",
			"ticket", t.ID, "workspace", t.WorkspaceID, "error", err)
		return
	}

	backing := o.resolveBackingPath(t.WorkspaceID)

	text := prompt.Build(prompt.BuildOpts{
		Ticket:      t,
		BackingPath: backing,
		Resume:      t.ConversationHistoryPath != "",
	})
	if err := o.store.WritePrompt(cwd, t.ID, text); err != nil {
		debug.LogKV("orch", "launch aborted: prompt write failed",
			"ticket", t.ID, "cwd", cwd, "error", err)
		return
	}

	command := o.composeCommand(t, cwd, backing)

	sessionID, err := o.term.CreateSession(t.WorkspaceID, cwd, sessionLabel(t), command)
	if err != nil {
		// The ticket still proceeds to WORKING; the backlog keeps moving
		// even when no terminal can be shown.
		debug.LogKV("orch", "session creation failed", "ticket", t.ID, "error", err)
	} else {
		o.bind(t.ID, t.WorkspaceID, sessionID)
		o.term.SetColor(sessionID, theme.TabInProgress)
		o.emit(events.SessionOpenedMsg{
			WorkspaceID: t.WorkspaceID,
			TicketID:    t.ID,
			SessionID:   sessionID,
			Label:       sessionLabel(t),
		})
	}

	// Optimistic flip: the snapshot reflects WORKING before the persistence
	// write lands, so the next diff does not re-detect our own transition.
	o.markSnapshotStatus(t.WorkspaceID, t.ID, ticket.StatusWorking)
	if err := o.store.Update(t.WorkspaceID, t.ID, func(tk *ticket.Ticket) {
		tk.Status = ticket.StatusWorking
	}); err != nil {
		debug.LogKV("orch", "persisting WORKING failed", "ticket", t.ID, "error", err)
	}

	ticketID, workspaceID := t.ID, t.WorkspaceID
	o.tasks.Schedule(promptCleanupDelay, func() {
		if err := o.store.CleanupPrompt(cwd, ticketID); err != nil {
			debug.LogKV("orch", "prompt cleanup failed", "ticket", ticketID, "error", err)
		}
	})
	o.tasks.Schedule(linkConversationDelay, func() {
		if err := o.store.LinkConversation(cwd, ticketID, workspaceID); err != nil {
			debug.LogKV("orch", "conversation link failed", "ticket", ticketID, "error", err)
		}
	})

	debug.LogKV("orch", "ticket launched", "ticket", t.ID, "workspace", t.WorkspaceID, "cwd", cwd)
}

func (o *Orchestrator) resolveWorkdir(t ticket.Ticket) (string, error) {
	if t.TargetProjectID != "" {
		return o.ws.ProjectDir(t.WorkspaceID, t.TargetProjectID)
	}
	return o.ws.CombinedDir(t.WorkspaceID)
}

// resolveBackingPath is best-effort: prompt generation must never block on a
// path lookup, so a failure falls back to the deterministic default location.
func (o *Orchestrator) resolveBackingPath(workspaceID string) string {
	path, err := o.store.BackingPath(workspaceID)
	if err != nil || path == "" {
		debug.LogKV("orch", "backing path lookup failed, using default", "workspace", workspaceID, "error", err)
		return filepath.Join(config.Dir(), "workspaces", workspaceID, "tickets.json")
	}
	return path
}

// composeCommand builds the shell command the session runs. CTO tickets run
// one-shot with the prompt piped in; regular tickets run interactively with
// the prompt as an argument so the session stays open for follow-up.
func (o *Orchestrator) composeCommand(t ticket.Ticket, cwd, backing string) string {
	cfg := o.cfg()
	agent := cfg.EffectiveAgentCommand()
	promptFile := ticket.PromptPath(cwd, t.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "unset %s; ", strings.Join(insideAgentMarkers, " "))
	fmt.Fprintf(&b, "export %s=%s %s=%s; ", EnvTicketID, shellQuote(t.ID), EnvTicketsPath, shellQuote(backing))
	if debug.Enabled() {
		b.WriteString("export CREWDECK_DEBUG_ENABLED=1; ")
	}

	var args strings.Builder
	for _, a := range cfg.AgentArgs {
		args.WriteString(" ")
		args.WriteString(shellQuote(a))
	}

	if t.IsCtoTicket {
		fmt.Fprintf(&b, "cat %s | %s%s -p", shellQuote(promptFile), agent, args.String())
	} else {
		fmt.Fprintf(&b, "%s%s \"$(cat %s)\"", agent, args.String(), shellQuote(promptFile))
	}
	return b.String()
}

func sessionLabel(t ticket.Ticket) string {
	if t.TicketNumber > 0 {
		return fmt.Sprintf("#%d %s", t.TicketNumber, t.Title)
	}
	return t.Title
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
