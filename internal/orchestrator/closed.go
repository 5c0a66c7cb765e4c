package orchestrator

import (
	"github.com/crewdeck/crewdeck/internal/debug"
	"github.com/crewdeck/crewdeck/internal/ticket"
)

// HandleSessionClosed reacts to a terminal/tab closing: the binding is
// removed, and a ticket that was last known WORKING is demoted to PENDING
// since a closed window is not success. The persistence write is best-effort.
// Wire this as the terminal manager's closed callback.
func (o *Orchestrator) HandleSessionClosed(sessionID string) {
	o.mu.Lock()
	ticketID, ok := o.sessions[sessionID]
	var workspaceID string
	if ok {
		workspaceID = o.bindings[ticketID].workspaceID
		delete(o.sessions, sessionID)
		delete(o.bindings, ticketID)
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	last, known := o.lastKnownStatus(workspaceID, ticketID)
	if !known || last != ticket.StatusWorking {
		return
	}

	debug.LogKV("orch", "terminal closed while WORKING, demoting to PENDING",
		"ticket", ticketID, "session", sessionID)
	o.markSnapshotStatus(workspaceID, ticketID, ticket.StatusPending)
	err := o.store.Update(workspaceID, ticketID, func(tk *ticket.Ticket) {
		if tk.Status == ticket.StatusWorking {
			tk.Status = ticket.StatusPending
		}
	})
	if err != nil {
		debug.LogKV("orch", "PENDING demotion write failed", "ticket", ticketID, "error", err)
	}
}
