package orchestrator

import (
	"github.com/crewdeck/crewdeck/internal/debug"
	"github.com/crewdeck/crewdeck/internal/ticket"
)

// TrackWorkspace registers a workspace for reconciliation and performs the
// initial resume-or-pick: tickets found WORKING from a previous process get
// their sessions relaunched (resuming from any linked transcript); otherwise
// the scheduler picks fresh work. Tracking an already-tracked workspace is a
// no-op.
func (o *Orchestrator) TrackWorkspace(workspaceID string) {
	o.mu.Lock()
	if workspaceID == o.foreground && o.foreground != "" {
		o.mu.Unlock()
		return
	}
	if _, ok := o.background[workspaceID]; ok {
		o.mu.Unlock()
		return
	}
	o.background[workspaceID] = nil
	o.mu.Unlock()

	o.loadAndResume(workspaceID)
}

// loadAndResume fetches the workspace's tickets, installs the snapshot and
// performs resume-or-pick.
func (o *Orchestrator) loadAndResume(workspaceID string) {
	curr, err := o.store.List(workspaceID)
	if err != nil {
		debug.LogKV("orch", "workspace load failed", "workspace", workspaceID, "error", err)
		return
	}
	o.setSnapshot(workspaceID, curr)

	resumed := false
	for _, t := range curr {
		if t.Status != ticket.StatusWorking {
			continue
		}
		if _, bound := o.bindingFor(t.ID); bound {
			resumed = true
			continue
		}
		debug.LogKV("orch", "resuming interrupted ticket", "workspace", workspaceID, "ticket", t.ID)
		o.Launch(t)
		resumed = true
	}
	if !resumed {
		o.PickAndLaunch(workspaceID)
	}
}

// SetForeground switches the workspace the user is viewing. The outgoing
// workspace's live snapshot moves into the background cache (it keeps
// reconciling unattended); the incoming workspace's cached snapshot, if any,
// becomes the live one before a fresh reconcile.
func (o *Orchestrator) SetForeground(workspaceID string) {
	o.mu.Lock()
	if workspaceID == o.foreground {
		o.mu.Unlock()
		return
	}
	if o.foreground != "" {
		o.background[o.foreground] = o.foregroundSnap
	}
	cached, hadCache := o.background[workspaceID]
	delete(o.background, workspaceID)
	o.foreground = workspaceID
	o.foregroundSnap = cached
	o.mu.Unlock()

	if workspaceID == "" {
		return
	}
	if hadCache {
		o.Reconcile(workspaceID)
	} else {
		o.loadAndResume(workspaceID)
	}
}
