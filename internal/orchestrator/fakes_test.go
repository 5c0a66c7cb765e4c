package orchestrator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/notify"
	"github.com/crewdeck/crewdeck/internal/ticket"
)

var errFake = fmt.Errorf("induced failure")

// fakeStore is an in-memory TicketStore. Tests mutate tickets directly to
// simulate agent rewrites of the backing file.
type fakeStore struct {
	mu      sync.Mutex
	tickets map[string][]ticket.Ticket
	listErr error

	prompts  map[string]string // "cwd/ticketID" -> text
	cleanups []string
	linked   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tickets: make(map[string][]ticket.Ticket),
		prompts: make(map[string]string),
	}
}

func (s *fakeStore) put(ts ...ticket.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range ts {
		s.tickets[t.WorkspaceID] = append(s.tickets[t.WorkspaceID], t)
	}
}

func (s *fakeStore) set(workspaceID, id string, status ticket.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.tickets[workspaceID]
	for i := range list {
		if list[i].ID == id {
			list[i].Status = status
		}
	}
}

func (s *fakeStore) get(workspaceID, id string) ticket.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets[workspaceID] {
		if t.ID == id {
			return t
		}
	}
	return ticket.Ticket{}
}

func (s *fakeStore) List(workspaceID string) ([]ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]ticket.Ticket, len(s.tickets[workspaceID]))
	copy(out, s.tickets[workspaceID])
	return out, nil
}

func (s *fakeStore) Update(workspaceID, id string, mutate func(*ticket.Ticket)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.tickets[workspaceID]
	for i := range list {
		if list[i].ID == id {
			mutate(&list[i])
			list[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("ticket %s not found", id)
}

func (s *fakeStore) BackingPath(workspaceID string) (string, error) {
	return "/backing/" + workspaceID + "/tickets.json", nil
}

func (s *fakeStore) WritePrompt(cwd, ticketID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[cwd+"/"+ticketID] = text
	return nil
}

func (s *fakeStore) CleanupPrompt(cwd, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups = append(s.cleanups, cwd+"/"+ticketID)
	return nil
}

func (s *fakeStore) LinkConversation(cwd, ticketID, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linked = append(s.linked, ticketID)
	return nil
}

type fakeSession struct {
	workspaceID string
	cwd         string
	label       string
	command     string
	color       string
	activity    bool
	activated   bool
}

// fakeTerminal records terminal interactions.
type fakeTerminal struct {
	mu        sync.Mutex
	nextID    int
	sessions  map[string]*fakeSession
	closed    []string
	createErr error
}

func newFakeTerminal() *fakeTerminal {
	return &fakeTerminal{sessions: make(map[string]*fakeSession)}
}

func (f *fakeTerminal) CreateSession(workspaceID, cwd, label, initialCommand string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("sess-%d", f.nextID)
	f.sessions[id] = &fakeSession{
		workspaceID: workspaceID,
		cwd:         cwd,
		label:       label,
		command:     initialCommand,
	}
	return id, nil
}

func (f *fakeTerminal) session(id string) *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

func (f *fakeTerminal) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeTerminal) SetColor(sessionID, colorHex string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.sessions[sessionID]; s != nil {
		s.color = colorHex
	}
}

func (f *fakeTerminal) SetActivity(sessionID string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.sessions[sessionID]; s != nil {
		s.activity = active
	}
}

func (f *fakeTerminal) Activate(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.sessions[sessionID]; s != nil {
		s.activated = true
	}
}

func (f *fakeTerminal) Close(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; ok {
		delete(f.sessions, sessionID)
		f.closed = append(f.closed, sessionID)
	}
}

func (f *fakeTerminal) IsLive(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[sessionID]
	return ok
}

// fakeWorkspaces resolves everything to fixed paths.
type fakeWorkspaces struct {
	projectDirs map[string]string // projectID -> path
	combined    map[string]string // workspaceID -> path
}

func newFakeWorkspaces() *fakeWorkspaces {
	return &fakeWorkspaces{
		projectDirs: make(map[string]string),
		combined:    make(map[string]string),
	}
}

func (f *fakeWorkspaces) ProjectDir(workspaceID, projectID string) (string, error) {
	if dir, ok := f.projectDirs[projectID]; ok {
		return dir, nil
	}
	return "", fmt.Errorf("project %s not found", projectID)
}

func (f *fakeWorkspaces) CombinedDir(workspaceID string) (string, error) {
	if dir, ok := f.combined[workspaceID]; ok {
		return dir, nil
	}
	return "", fmt.Errorf("workspace %s has no projects", workspaceID)
}

type notification struct {
	sev   notify.Severity
	title string
	body  string
	nav   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (f *fakeNotifier) Notify(sev notify.Severity, title, body, navTarget string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{sev: sev, title: title, body: body, nav: navTarget})
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// virtualClock is a deterministic TimerFactory: tasks fire when Advance
// crosses their deadline, on the caller's goroutine, in deadline order.
type virtualClock struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*vtask
}

type vtask struct {
	at        time.Duration
	fn        func()
	cancelled bool
}

func newVirtualClock() *virtualClock {
	return &virtualClock{}
}

func (c *virtualClock) factory(d time.Duration, fn func()) func() {
	c.mu.Lock()
	t := &vtask{at: c.now + d, fn: fn}
	c.tasks = append(c.tasks, t)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		t.cancelled = true
		c.mu.Unlock()
	}
}

// Advance moves virtual time forward and runs due tasks, including tasks the
// running tasks schedule inside the advanced window.
func (c *virtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	deadline := c.now
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *vtask
		remaining := c.tasks[:0]
		sort.SliceStable(c.tasks, func(i, j int) bool { return c.tasks[i].at < c.tasks[j].at })
		for _, t := range c.tasks {
			if due == nil && !t.cancelled && t.at <= deadline {
				due = t
				continue
			}
			remaining = append(remaining, t)
		}
		c.tasks = remaining
		c.mu.Unlock()

		if due == nil {
			return
		}
		due.fn()
	}
}

type testEnv struct {
	orch  *Orchestrator
	store *fakeStore
	term  *fakeTerminal
	ws    *fakeWorkspaces
	notes *fakeNotifier
	clock *virtualClock
	cfg   *config.GlobalConfig
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store: newFakeStore(),
		term:  newFakeTerminal(),
		ws:    newFakeWorkspaces(),
		notes: &fakeNotifier{},
		clock: newVirtualClock(),
		cfg:   &config.GlobalConfig{},
	}
	env.orch = New(Options{
		Store:      env.store,
		Terminal:   env.term,
		Workspaces: env.ws,
		Notifier:   env.notes,
		Config:     func() *config.GlobalConfig { return env.cfg },
		Timers:     env.clock.factory,
	})
	return env
}

// seedSnapshot installs a snapshot without triggering resume-or-pick, as if
// the workspace had already been reconciled against this exact state.
func (env *testEnv) seedSnapshot(workspaceID string) {
	list, _ := env.store.List(workspaceID)
	env.orch.mu.Lock()
	env.orch.background[workspaceID] = list
	env.orch.mu.Unlock()
}

func mkTicket(id, workspaceID string, status ticket.Status, prio ticket.Priority) ticket.Ticket {
	return ticket.Ticket{
		ID:          id,
		WorkspaceID: workspaceID,
		Title:       "ticket " + id,
		Status:      status,
		Priority:    prio,
		CreatedAt:   time.Now().UTC(),
	}
}
