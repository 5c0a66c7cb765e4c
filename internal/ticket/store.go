package ticket

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/internal/hexid"
)

// PromptFilePrefix names the per-ticket scratch prompt file dropped into the
// session working directory. The full name is <prefix><ticketID>.md.
const PromptFilePrefix = ".crewdeck-prompt-"

// HistoryFilePrefix names the transcript file an agent may leave behind in
// its working directory. LinkConversation picks it up.
const HistoryFilePrefix = ".crewdeck-history-"

// Store persists tickets as one JSON array per workspace under
// <root>/workspaces/<workspaceID>/tickets.json. External processes (the
// agents) rewrite individual records in that file; the store never caches.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a Store rooted at dir (normally config.Dir()).
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) workspaceDir(workspaceID string) string {
	return filepath.Join(s.root, "workspaces", workspaceID)
}

// BackingPath returns the path of the ticket file for a workspace. The file
// may not exist yet; the path is still valid (agents are handed it via env).
func (s *Store) BackingPath(workspaceID string) (string, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return "", fmt.Errorf("workspace id is required")
	}
	return filepath.Join(s.workspaceDir(workspaceID), "tickets.json"), nil
}

// List returns all tickets of a workspace, in file order.
func (s *Store) List(workspaceID string) ([]Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(workspaceID)
}

func (s *Store) readLocked(workspaceID string) ([]Ticket, error) {
	path, err := s.BackingPath(workspaceID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var tickets []Ticket
	if err := json.Unmarshal(data, &tickets); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return tickets, nil
}

func (s *Store) writeLocked(workspaceID string, tickets []Ticket) error {
	path, err := s.BackingPath(workspaceID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if tickets == nil {
		tickets = []Ticket{}
	}
	data, err := json.MarshalIndent(tickets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Create assigns id, ticket number and timestamps, then appends the ticket.
func (s *Store) Create(t *Ticket) error {
	if t == nil {
		return fmt.Errorf("ticket is nil")
	}
	if strings.TrimSpace(t.WorkspaceID) == "" {
		return fmt.Errorf("ticket has no workspace id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.readLocked(t.WorkspaceID)
	if err != nil {
		return err
	}

	if t.ID == "" {
		t.ID = hexid.NewLong()
	}
	maxNum := 0
	for _, existing := range tickets {
		if existing.ID == t.ID {
			return fmt.Errorf("ticket %s already exists", t.ID)
		}
		if existing.TicketNumber > maxNum {
			maxNum = existing.TicketNumber
		}
	}
	if t.TicketNumber == 0 {
		t.TicketNumber = maxNum + 1
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	return s.writeLocked(t.WorkspaceID, append(tickets, *t))
}

// Get returns a single ticket by id.
func (s *Store) Get(workspaceID, id string) (*Ticket, error) {
	tickets, err := s.List(workspaceID)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		if tickets[i].ID == id {
			return &tickets[i], nil
		}
	}
	return nil, fmt.Errorf("ticket %s not found in workspace %s", id, workspaceID)
}

// Update applies mutate to the matching record and refreshes updatedAt. The
// read-modify-write happens under the store lock so concurrent orchestrator
// writes don't clobber each other (agent rewrites still can; the
// reconciliation loop is the backstop for that).
func (s *Store) Update(workspaceID, id string, mutate func(*Ticket)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.readLocked(workspaceID)
	if err != nil {
		return err
	}
	for i := range tickets {
		if tickets[i].ID != id {
			continue
		}
		mutate(&tickets[i])
		tickets[i].ID = id
		tickets[i].WorkspaceID = workspaceID
		tickets[i].UpdatedAt = time.Now().UTC()
		return s.writeLocked(workspaceID, tickets)
	}
	return fmt.Errorf("ticket %s not found in workspace %s", id, workspaceID)
}

// Delete removes a ticket and its stored attachments.
func (s *Store) Delete(id, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.readLocked(workspaceID)
	if err != nil {
		return err
	}
	out := tickets[:0]
	found := false
	for _, t := range tickets {
		if t.ID == id {
			found = true
			for _, att := range t.Attachments {
				os.Remove(att.StoredPath)
			}
			continue
		}
		out = append(out, t)
	}
	if !found {
		return fmt.Errorf("ticket %s not found in workspace %s", id, workspaceID)
	}
	return s.writeLocked(workspaceID, out)
}

// AddAttachment stores data under the workspace attachments dir and appends
// the attachment record to the ticket.
func (s *Store) AddAttachment(workspaceID, id, filename, mimeType string, data []byte) (*Attachment, error) {
	dir := filepath.Join(s.workspaceDir(workspaceID), "attachments")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	att := Attachment{
		ID:       hexid.New(),
		Filename: filename,
		MimeType: mimeType,
	}
	att.StoredPath = filepath.Join(dir, att.ID+"-"+filepath.Base(filename))
	if err := os.WriteFile(att.StoredPath, data, 0644); err != nil {
		return nil, err
	}
	if err := s.Update(workspaceID, id, func(t *Ticket) {
		t.Attachments = append(t.Attachments, att)
	}); err != nil {
		os.Remove(att.StoredPath)
		return nil, err
	}
	return &att, nil
}

// PromptPath returns the scratch prompt file path for a ticket in cwd.
func PromptPath(cwd, ticketID string) string {
	return filepath.Join(cwd, PromptFilePrefix+ticketID+".md")
}

// HistoryPath returns the conventional transcript path for a ticket in cwd.
func HistoryPath(cwd, ticketID string) string {
	return filepath.Join(cwd, HistoryFilePrefix+ticketID+".jsonl")
}

// WritePrompt writes the scratch prompt file the spawned agent reads on start.
func (s *Store) WritePrompt(cwd, ticketID, text string) error {
	return os.WriteFile(PromptPath(cwd, ticketID), []byte(text), 0644)
}

// CleanupPrompt removes the scratch prompt file. Missing files are fine.
func (s *Store) CleanupPrompt(cwd, ticketID string) error {
	err := os.Remove(PromptPath(cwd, ticketID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LinkConversation associates a transcript the agent left in cwd with the
// ticket's conversationHistoryPath, enabling resume after interruption.
// No transcript, no update.
func (s *Store) LinkConversation(cwd, ticketID, workspaceID string) error {
	path := HistoryPath(cwd, ticketID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return s.Update(workspaceID, ticketID, func(t *Ticket) {
		t.ConversationHistoryPath = path
	})
}
