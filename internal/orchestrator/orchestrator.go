// Package orchestrator turns the ticket backlog into sequenced, supervised
// agent sessions. It owns the session bindings, the relaunch guard, and the
// per-workspace ticket snapshots that reconciliation diffs against; nothing
// here is a package-level singleton, so tests construct fresh instances.
package orchestrator

import (
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/debug"
	"github.com/crewdeck/crewdeck/internal/eventq"
	"github.com/crewdeck/crewdeck/internal/notify"
	"github.com/crewdeck/crewdeck/internal/ticket"
)

// Side-effect delays. Close happens quickly but visibly; relaunch waits for
// closing tabs to vacate; prompt cleanup and conversation linking give the
// agent time to read its prompt and write a transcript.
const (
	closeTerminalDelay    = 1500 * time.Millisecond
	relaunchDelay         = 3 * time.Second
	scheduleAfterFinish   = 2 * time.Second
	promptCleanupDelay    = 30 * time.Second
	linkConversationDelay = 20 * time.Second
)

// TicketStore is the persistence surface the orchestrator consumes. The
// backing file is also rewritten by agent processes, so implementations must
// re-read on every List.
type TicketStore interface {
	List(workspaceID string) ([]ticket.Ticket, error)
	Update(workspaceID, id string, mutate func(*ticket.Ticket)) error
	BackingPath(workspaceID string) (string, error)
	WritePrompt(cwd, ticketID, text string) error
	CleanupPrompt(cwd, ticketID string) error
	LinkConversation(cwd, ticketID, workspaceID string) error
}

// Terminal is the session service surface the orchestrator consumes.
type Terminal interface {
	CreateSession(workspaceID, cwd, label, initialCommand string) (string, error)
	SetColor(sessionID, colorHex string)
	SetActivity(sessionID string, active bool)
	Activate(sessionID string)
	Close(sessionID string)
	IsLive(sessionID string) bool
}

// Workspaces resolves workspace identifiers to working directories.
type Workspaces interface {
	ProjectDir(workspaceID, projectID string) (string, error)
	CombinedDir(workspaceID string) (string, error)
}

// Notifier is the user-facing notification sink.
type Notifier interface {
	Notify(sev notify.Severity, title, body, navTarget string)
}

type binding struct {
	sessionID   string
	workspaceID string
}

// Orchestrator drives scheduling, launching and reconciliation for every
// tracked workspace.
type Orchestrator struct {
	store  TicketStore
	term   Terminal
	ws     Workspaces
	notify Notifier

	// cfg is resolved once per reconciliation cycle, never mid-cycle.
	cfg func() *config.GlobalConfig

	tasks *taskQueue

	mu         sync.Mutex
	bindings   map[string]binding // ticketID -> session binding
	sessions   map[string]string  // sessionID -> ticketID
	relaunched map[string]bool    // relaunch guard, process lifetime

	// foreground holds the workspace the user is viewing; its snapshot
	// lives in foregroundSnap. Every other tracked workspace keeps its
	// snapshot in background and reconciles on the same poll.
	foreground     string
	foregroundSnap []ticket.Ticket
	background     map[string][]ticket.Ticket

	eventCh chan any
}

// Options configures orchestrator construction.
type Options struct {
	Store      TicketStore
	Terminal   Terminal
	Workspaces Workspaces
	Notifier   Notifier

	// Config returns the current global config. Defaults to config.Load
	// with errors swallowed.
	Config func() *config.GlobalConfig

	// Timers replaces the real timer factory; tests install a virtual
	// clock here to fast-forward delayed side effects.
	Timers TimerFactory
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	cfgFn := opts.Config
	if cfgFn == nil {
		cfgFn = func() *config.GlobalConfig {
			cfg, err := config.Load()
			if err != nil {
				debug.LogKV("orch", "config load failed", "error", err)
				return &config.GlobalConfig{}
			}
			return cfg
		}
	}
	return &Orchestrator{
		store:      opts.Store,
		term:       opts.Terminal,
		ws:         opts.Workspaces,
		notify:     opts.Notifier,
		cfg:        cfgFn,
		tasks:      newTaskQueue(opts.Timers),
		bindings:   make(map[string]binding),
		sessions:   make(map[string]string),
		relaunched: make(map[string]bool),
		background: make(map[string][]ticket.Ticket),
	}
}

// SetEventCh sets the channel reconciliation events are offered to. Sends
// never block; a full channel drops the event.
func (o *Orchestrator) SetEventCh(ch chan any) {
	o.mu.Lock()
	o.eventCh = ch
	o.mu.Unlock()
}

func (o *Orchestrator) emit(msg any) {
	o.mu.Lock()
	ch := o.eventCh
	o.mu.Unlock()
	if ch == nil {
		return
	}
	if !eventq.Offer(ch, msg) {
		debug.Log("orch", "dropping event due to backpressure")
	}
}

func (o *Orchestrator) prefs() config.Preferences {
	return o.cfg().Preferences
}

func (o *Orchestrator) bind(ticketID, workspaceID, sessionID string) {
	o.mu.Lock()
	// Rebinding over a dead session: drop the old reverse entry so a late
	// closed event for it cannot unbind the fresh session.
	if prev, ok := o.bindings[ticketID]; ok && prev.sessionID != sessionID {
		delete(o.sessions, prev.sessionID)
	}
	o.bindings[ticketID] = binding{sessionID: sessionID, workspaceID: workspaceID}
	o.sessions[sessionID] = ticketID
	o.mu.Unlock()
}

func (o *Orchestrator) bindingFor(ticketID string) (binding, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.bindings[ticketID]
	return b, ok
}

// unbindTicket removes a ticket's binding, if any, and returns the session id
// it was bound to.
func (o *Orchestrator) unbindTicket(ticketID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.bindings[ticketID]
	if !ok {
		return "", false
	}
	delete(o.bindings, ticketID)
	delete(o.sessions, b.sessionID)
	return b.sessionID, true
}

func (o *Orchestrator) unbindSession(sessionID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ticketID, ok := o.sessions[sessionID]
	if !ok {
		return "", false
	}
	delete(o.sessions, sessionID)
	delete(o.bindings, ticketID)
	return ticketID, true
}

// hasLiveBinding reports whether any ticket of the workspace is bound to a
// session the terminal still considers live. This is the whole of the
// one-at-a-time guarantee.
func (o *Orchestrator) hasLiveBinding(workspaceID string) bool {
	o.mu.Lock()
	bs := make(map[string]binding, len(o.bindings))
	for id, b := range o.bindings {
		bs[id] = b
	}
	o.mu.Unlock()
	for _, b := range bs {
		if b.workspaceID == workspaceID && o.term.IsLive(b.sessionID) {
			return true
		}
	}
	return false
}

// snapshotFor returns the last-known ticket list for a workspace and whether
// the workspace is tracked at all.
func (o *Orchestrator) snapshotFor(workspaceID string) ([]ticket.Ticket, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if workspaceID == o.foreground && o.foreground != "" {
		return o.foregroundSnap, true
	}
	snap, ok := o.background[workspaceID]
	return snap, ok
}

func (o *Orchestrator) setSnapshot(workspaceID string, tickets []ticket.Ticket) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if workspaceID == o.foreground && o.foreground != "" {
		o.foregroundSnap = tickets
		return
	}
	o.background[workspaceID] = tickets
}

// markSnapshotStatus rewrites one ticket's status inside the stored snapshot.
// Used for the optimistic WORKING flip so the next diff does not re-detect a
// transition the orchestrator caused itself.
func (o *Orchestrator) markSnapshotStatus(workspaceID, ticketID string, status ticket.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := o.background[workspaceID]
	if workspaceID == o.foreground && o.foreground != "" {
		snap = o.foregroundSnap
	}
	for i := range snap {
		if snap[i].ID == ticketID {
			snap[i].Status = status
			return
		}
	}
}

// lastKnownStatus returns a ticket's status from the workspace snapshot.
func (o *Orchestrator) lastKnownStatus(workspaceID, ticketID string) (ticket.Status, bool) {
	snap, ok := o.snapshotFor(workspaceID)
	if !ok {
		return "", false
	}
	for _, t := range snap {
		if t.ID == ticketID {
			return t.Status, true
		}
	}
	return "", false
}

// trackedWorkspaces returns every workspace with a snapshot, foreground first.
func (o *Orchestrator) trackedWorkspaces() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.background)+1)
	if o.foreground != "" {
		out = append(out, o.foreground)
	}
	for ws := range o.background {
		out = append(out, ws)
	}
	return out
}

// Reset clears all in-memory orchestration state: bindings, relaunch guard,
// snapshots and pending delayed tasks. For tests.
func (o *Orchestrator) Reset() {
	o.tasks.CancelAll()
	o.mu.Lock()
	o.bindings = make(map[string]binding)
	o.sessions = make(map[string]string)
	o.relaunched = make(map[string]bool)
	o.foreground = ""
	o.foregroundSnap = nil
	o.background = make(map[string][]ticket.Ticket)
	o.mu.Unlock()
}
