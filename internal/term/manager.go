// Package term manages pty-backed terminal sessions for the control panel.
// Each session runs a shell command on a pseudo-terminal; output is buffered
// for late subscribers and fanned out to live ones (the websocket bridge).
package term

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/crewdeck/crewdeck/internal/debug"
	"github.com/crewdeck/crewdeck/internal/eventq"
	"github.com/crewdeck/crewdeck/internal/events"
	"github.com/crewdeck/crewdeck/internal/hexid"
)

const (
	defaultRows   = 24
	defaultCols   = 80
	readBufferLen = 4096
	ringCapacity  = 128 * 1024
)

// Info is the externally visible snapshot of a session.
type Info struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Label       string    `json:"label"`
	Dir         string    `json:"dir"`
	Command     string    `json:"command"`
	Color       string    `json:"color,omitempty"`
	Activity    bool      `json:"activity"`
	Live        bool      `json:"live"`
	StartedAt   time.Time `json:"startedAt"`
}

type session struct {
	id          string
	workspaceID string
	label       string
	dir         string
	command     string
	startedAt   time.Time

	ptmx *os.File
	cmd  *exec.Cmd
	ring *outputRing

	mu          sync.Mutex
	color       string
	activity    bool
	closed      bool
	subscribers map[int]chan []byte
	nextSub     int
}

// Manager owns all live sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	active   string
	onClosed []func(sessionID string)
	eventCh  chan any
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*session)}
}

// SetEventCh sets the channel session lifecycle events are offered to.
// Sends never block; a full channel drops the event.
func (m *Manager) SetEventCh(ch chan any) {
	m.mu.Lock()
	m.eventCh = ch
	m.mu.Unlock()
}

// OnClosed registers a callback fired (on the watcher goroutine) whenever a
// session's process exits or the session is closed.
func (m *Manager) OnClosed(fn func(sessionID string)) {
	m.mu.Lock()
	m.onClosed = append(m.onClosed, fn)
	m.mu.Unlock()
}

func (m *Manager) emit(msg any) {
	m.mu.Lock()
	ch := m.eventCh
	m.mu.Unlock()
	if ch == nil {
		return
	}
	if !eventq.Offer(ch, msg) {
		debug.Log("term", "dropping event due to backpressure")
	}
}

// CreateSession starts `$SHELL -c initialCommand` on a pty in cwd and
// returns the session id.
func (m *Manager) CreateSession(workspaceID, cwd, label, initialCommand string) (string, error) {
	shell := strings.TrimSpace(os.Getenv("SHELL"))
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell, "-c", initialCommand)
	cmd.Dir = cwd
	attrs := &syscall.SysProcAttr{Setpgid: true}
	cmd.SysProcAttr = attrs

	ptmx, err := pty.StartWithAttrs(cmd, nil, attrs)
	if err != nil {
		return "", fmt.Errorf("starting pty session: %w", err)
	}
	_ = pty.Setsize(ptmx, &pty.Winsize{Rows: defaultRows, Cols: defaultCols})

	s := &session{
		id:          hexid.New(),
		workspaceID: workspaceID,
		label:       label,
		dir:         cwd,
		command:     initialCommand,
		startedAt:   time.Now().UTC(),
		ptmx:        ptmx,
		cmd:         cmd,
		ring:        newOutputRing(ringCapacity),
		subscribers: make(map[int]chan []byte),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	go s.pumpOutput()
	go m.watch(s)

	debug.LogKV("term", "session created",
		"session", s.id,
		"workspace", workspaceID,
		"dir", cwd,
		"label", label,
	)
	m.emit(events.SessionOpenedMsg{WorkspaceID: workspaceID, SessionID: s.id, Label: label})
	return s.id, nil
}

// pumpOutput copies pty output into the ring buffer and live subscribers.
func (s *session) pumpOutput() {
	buf := make([]byte, readBufferLen)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.ring.Write(chunk)

			s.mu.Lock()
			for _, ch := range s.subscribers {
				eventq.Offer(ch, chunk)
			}
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// watch waits for process exit, then marks the session closed and fires the
// registered callbacks.
func (m *Manager) watch(s *session) {
	err := s.cmd.Wait()
	debug.LogKV("term", "session process exited", "session", s.id, "error", err)
	m.finishSession(s)
}

func (m *Manager) finishSession(s *session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subscribers
	s.subscribers = make(map[int]chan []byte)
	s.mu.Unlock()

	_ = s.ptmx.Close()
	for _, ch := range subs {
		close(ch)
	}

	m.mu.Lock()
	delete(m.sessions, s.id)
	if m.active == s.id {
		m.active = ""
	}
	callbacks := append([]func(string){}, m.onClosed...)
	m.mu.Unlock()

	m.emit(events.SessionClosedMsg{SessionID: s.id})
	for _, fn := range callbacks {
		fn(s.id)
	}
}

func (m *Manager) get(sessionID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

// Write sends input bytes to the session's pty.
func (m *Manager) Write(sessionID string, data []byte) error {
	s := m.get(sessionID)
	if s == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}
	_, err := s.ptmx.Write(data)
	return err
}

// Resize changes the pty window size.
func (m *Manager) Resize(sessionID string, cols, rows int) error {
	s := m.get(sessionID)
	if s == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid size %dx%d", cols, rows)
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: clampUint16(rows), Cols: clampUint16(cols)})
}

// SetColor tags the session's tab with a hex color. Unknown sessions are
// ignored: reconciliation colors tabs best-effort after outcomes, and the
// tab may already be gone.
func (m *Manager) SetColor(sessionID, colorHex string) {
	s := m.get(sessionID)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.color = colorHex
	s.mu.Unlock()
	m.emit(events.SessionColorMsg{SessionID: sessionID, Color: colorHex})
}

// SetActivity marks the session tab as needing attention.
func (m *Manager) SetActivity(sessionID string, active bool) {
	s := m.get(sessionID)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.activity = active
	s.mu.Unlock()
	m.emit(events.SessionActivityMsg{SessionID: sessionID, Active: active})
}

// Activate asks the frontend to focus the session's tab.
func (m *Manager) Activate(sessionID string) {
	if m.get(sessionID) == nil {
		return
	}
	m.mu.Lock()
	m.active = sessionID
	m.mu.Unlock()
	m.emit(events.SessionFocusMsg{SessionID: sessionID})
}

// Close terminates the session's process group. The closed watcher performs
// the actual teardown and callback dispatch.
func (m *Manager) Close(sessionID string) {
	s := m.get(sessionID)
	if s == nil {
		return
	}
	debug.LogKV("term", "closing session", "session", sessionID)
	if s.cmd.Process != nil && s.cmd.Process.Pid > 0 {
		_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
	}
	_ = s.ptmx.Close()
}

// IsLive reports whether the session exists and its process has not exited.
func (m *Manager) IsLive(sessionID string) bool {
	return m.get(sessionID) != nil
}

// Get returns a session snapshot.
func (m *Manager) Get(sessionID string) (Info, bool) {
	s := m.get(sessionID)
	if s == nil {
		return Info{}, false
	}
	return s.info(), true
}

// List returns snapshots of all live sessions.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.info())
	}
	return out
}

func (s *session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:          s.id,
		WorkspaceID: s.workspaceID,
		Label:       s.label,
		Dir:         s.dir,
		Command:     s.command,
		Color:       s.color,
		Activity:    s.activity,
		Live:        !s.closed,
		StartedAt:   s.startedAt,
	}
}

// Subscribe attaches an output listener. The returned backlog holds output
// emitted before attachment; subsequent chunks arrive on the channel, which
// is closed when the session ends.
func (m *Manager) Subscribe(sessionID string) (int, <-chan []byte, []byte, error) {
	s := m.get(sessionID)
	if s == nil {
		return 0, nil, nil, fmt.Errorf("session %s not found", sessionID)
	}
	ch := make(chan []byte, 256)
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subscribers[id] = ch
	s.mu.Unlock()
	return id, ch, s.ring.Snapshot(), nil
}

// Unsubscribe detaches an output listener.
func (m *Manager) Unsubscribe(sessionID string, id int) {
	s := m.get(sessionID)
	if s == nil {
		return
	}
	s.mu.Lock()
	if ch, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		close(ch)
	}
	s.mu.Unlock()
}

// CloseAll tears down every session (shutdown path).
func (m *Manager) CloseAll() {
	for _, info := range m.List() {
		m.Close(info.ID)
	}
}

func clampUint16(v int) uint16 {
	if v < 1 {
		return 1
	}
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}
