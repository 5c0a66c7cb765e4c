package orchestrator

import (
	"context"
	"time"

	"github.com/crewdeck/crewdeck/internal/debug"
)

// ReconcileAll runs one reconciliation cycle for every tracked workspace,
// foreground first. Workspaces are fully independent: a failed cycle in one
// never affects another's snapshot, bindings or terminals.
func (o *Orchestrator) ReconcileAll() {
	for _, ws := range o.trackedWorkspaces() {
		o.Reconcile(ws)
	}
}

// RunPoller drives reconciliation on the configured interval until ctx is
// cancelled. The poll interval is re-read each tick so config edits apply
// without a restart.
func (o *Orchestrator) RunPoller(ctx context.Context) {
	debug.LogKV("orch", "poller started", "interval_secs", o.cfg().EffectivePollIntervalSecs())
	for {
		interval := time.Duration(o.cfg().EffectivePollIntervalSecs()) * time.Second
		select {
		case <-ctx.Done():
			debug.Log("orch", "poller stopped")
			o.tasks.CancelAll()
			return
		case <-time.After(interval):
			o.ReconcileAll()
		}
	}
}
