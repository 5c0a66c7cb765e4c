package orchestrator

import (
	"fmt"

	"github.com/crewdeck/crewdeck/internal/debug"
	"github.com/crewdeck/crewdeck/internal/events"
	"github.com/crewdeck/crewdeck/internal/notify"
	"github.com/crewdeck/crewdeck/internal/theme"
	"github.com/crewdeck/crewdeck/internal/ticket"
)

// Reconcile runs one cycle for a workspace: fetch the persisted list, diff it
// against the last-known snapshot by status, apply side effects, replace the
// snapshot. A fetch failure skips the cycle; the next poll retries. Running
// twice against an unchanged store produces no additional side effects.
func (o *Orchestrator) Reconcile(workspaceID string) {
	curr, err := o.store.List(workspaceID)
	if err != nil {
		debug.LogKV("orch", "reconcile fetch failed, skipping cycle", "workspace", workspaceID, "error", err)
		return
	}

	prev, tracked := o.snapshotFor(workspaceID)
	if !tracked {
		// Unknown workspace: adopt the snapshot without reacting to it.
		o.setSnapshot(workspaceID, curr)
		return
	}

	prefs := o.prefs()
	transitions := DiffTransitions(prev, curr)

	var closeSessions []string
	finished := false

	for _, tr := range transitions {
		o.emit(events.TicketChangedMsg{
			WorkspaceID: workspaceID,
			TicketID:    tr.Ticket.ID,
			From:        string(tr.From),
			To:          string(tr.To),
		})
		debug.LogKV("orch", "status transition",
			"workspace", workspaceID, "ticket", tr.Ticket.ID,
			"from", tr.From, "to", tr.To)

		t := tr.Ticket
		switch {
		case tr.To == ticket.StatusWorking:
			// Externally triggered start (user flipped the status, or an
			// agent claimed the ticket). Launch focuses instead if a live
			// binding already exists.
			if _, bound := o.bindingFor(t.ID); !bound {
				o.Launch(t)
			}

		case tr.From == ticket.StatusWorking && tr.To == ticket.StatusTodo && t.IsCtoTicket:
			// End of a CTO review cycle, not an interruption.
			if prefs.AutoCloseCtoTerminals {
				if b, ok := o.bindingFor(t.ID); ok {
					closeSessions = append(closeSessions, b.sessionID)
				}
			}

		case tr.From == ticket.StatusWorking && tr.To == ticket.StatusTodo:
			// The session ended without the agent setting an outcome: an
			// interruption. Relaunch once per ticket id, ever.
			o.handleInterruption(t, &closeSessions)

		case tr.To.Terminal():
			o.handleOutcome(workspaceID, t, tr.To, curr, prefs.AutoCloseCompletedTerminals, &closeSessions)
			finished = true

		case tr.To == ticket.StatusPending && !t.IsCtoTicket:
			// The agent asked a question; the ticket is still in progress.
			if b, ok := o.bindingFor(t.ID); ok {
				o.term.SetColor(b.sessionID, theme.TabAttention)
				o.term.SetActivity(b.sessionID, true)
			}
		}
	}

	// CTO tickets never wait on a human: any CTO ticket resting in PENDING
	// is auto-approved back to TODO, whether or not this cycle saw the
	// transition that put it there.
	for _, t := range curr {
		if !t.IsCtoTicket || t.Status != ticket.StatusPending {
			continue
		}
		o.autoApproveCto(workspaceID, t, prefs.AutoCloseCtoTerminals, &closeSessions)
		finished = true
	}

	o.setSnapshot(workspaceID, curr)

	// Queued closes: drop the binding now so the session stops counting as
	// live, close the tab after a short visible delay.
	for _, sessionID := range closeSessions {
		o.unbindSession(sessionID)
		sid := sessionID
		o.tasks.Schedule(closeTerminalDelay, func() { o.term.Close(sid) })
	}

	if finished && !o.hasLiveBinding(workspaceID) {
		ws := workspaceID
		o.tasks.Schedule(scheduleAfterFinish, func() { o.PickAndLaunch(ws) })
	}
}

// handleInterruption relaunches an interrupted ticket exactly once per
// process lifetime. A second interruption leaves the ticket TODO for
// ordinary scheduling, preventing infinite restart loops.
func (o *Orchestrator) handleInterruption(t ticket.Ticket, closeSessions *[]string) {
	o.mu.Lock()
	already := o.relaunched[t.ID]
	if !already {
		o.relaunched[t.ID] = true
	}
	o.mu.Unlock()

	if already {
		debug.LogKV("orch", "interrupted ticket already relaunched once, leaving TODO", "ticket", t.ID)
		return
	}

	if b, ok := o.bindingFor(t.ID); ok {
		*closeSessions = append(*closeSessions, b.sessionID)
	}

	ticketID, workspaceID := t.ID, t.WorkspaceID
	o.tasks.Schedule(relaunchDelay, func() {
		// Re-fetch: the ticket may have moved on (or been disabled) while
		// the relaunch was queued.
		tickets, err := o.store.List(workspaceID)
		if err != nil {
			debug.LogKV("orch", "relaunch fetch failed", "ticket", ticketID, "error", err)
			return
		}
		for _, curr := range tickets {
			if curr.ID == ticketID && curr.Status == ticket.StatusTodo && !curr.Disabled {
				o.Launch(curr)
				return
			}
		}
	})
}

// handleOutcome applies the DONE/FAILED side effects: tab color, relaunch
// guard clearing, optional auto-close, user notification.
func (o *Orchestrator) handleOutcome(workspaceID string, t ticket.Ticket, outcome ticket.Status, curr []ticket.Ticket, autoClose bool, closeSessions *[]string) {
	color := theme.TabSuccess
	if outcome == ticket.StatusFailed {
		color = theme.TabFailure
	}
	if b, ok := o.bindingFor(t.ID); ok {
		o.term.SetColor(b.sessionID, color)
		if autoClose {
			*closeSessions = append(*closeSessions, b.sessionID)
		}
	}

	o.mu.Lock()
	delete(o.relaunched, t.ID)
	o.mu.Unlock()

	remaining := countRemainingTodo(curr)
	if o.notify == nil {
		return
	}
	body := fmt.Sprintf("%d ticket(s) left in the backlog", remaining)
	if outcome == ticket.StatusDone {
		o.notify.Notify(notify.SeveritySuccess, "Ticket done: "+t.Title, body, workspaceID)
	} else {
		detail := t.Error
		if detail == "" {
			detail = body
		} else {
			detail = detail + ". " + body
		}
		o.notify.Notify(notify.SeverityError, "Ticket failed: "+t.Title, detail, workspaceID)
	}
}

// autoApproveCto rewrites a PENDING CTO ticket back to TODO in the backing
// store. Best-effort: a failed write retries on the next cycle because the
// check is level-triggered.
func (o *Orchestrator) autoApproveCto(workspaceID string, t ticket.Ticket, autoClose bool, closeSessions *[]string) {
	debug.LogKV("orch", "auto-approving CTO ticket", "ticket", t.ID)
	err := o.store.Update(workspaceID, t.ID, func(tk *ticket.Ticket) {
		if tk.Status == ticket.StatusPending {
			tk.Status = ticket.StatusTodo
			tk.Question = ""
		}
	})
	if err != nil {
		debug.LogKV("orch", "CTO auto-approve write failed", "ticket", t.ID, "error", err)
	}
	if autoClose {
		if b, ok := o.bindingFor(t.ID); ok {
			*closeSessions = append(*closeSessions, b.sessionID)
		}
	}
}

// PickAndLaunch runs the scheduler for a workspace and launches the pick, if
// any. It is a no-op while a ticket is WORKING or bound to a live session.
func (o *Orchestrator) PickAndLaunch(workspaceID string) {
	if o.hasLiveBinding(workspaceID) {
		return
	}
	tickets, err := o.store.List(workspaceID)
	if err != nil {
		debug.LogKV("orch", "scheduler fetch failed", "workspace", workspaceID, "error", err)
		return
	}
	for _, t := range tickets {
		if t.Status == ticket.StatusWorking {
			return
		}
	}
	if next := PickNext(tickets); next != nil {
		o.Launch(*next)
	}
}

// countRemainingTodo counts schedulable backlog left: TODO, enabled, non-CTO.
func countRemainingTodo(tickets []ticket.Ticket) int {
	n := 0
	for _, t := range tickets {
		if t.Status == ticket.StatusTodo && !t.Disabled && !t.IsCtoTicket {
			n++
		}
	}
	return n
}
