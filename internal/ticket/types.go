// Package ticket defines the unit of work tracked by the orchestrator and its
// file-backed persistence. Each workspace owns one JSON array of tickets that
// agent processes rewrite in place; the store therefore re-reads the file on
// every access instead of trusting any in-memory copy.
package ticket

import "time"

// Status is the ticket lifecycle state.
type Status string

const (
	StatusTodo    Status = "TODO"
	StatusWorking Status = "WORKING"
	StatusPending Status = "PENDING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether a status is a resting outcome that is never
// auto-relaunched.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Priority orders ready tickets. Lower rank wins.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns the scheduling rank: critical(0) < high(1) < medium(2) < low(3).
// Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Attachment is a file attached to a ticket, stored under the workspace dir.
type Attachment struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	StoredPath string `json:"storedPath"`
}

// IsImage reports whether the attachment should be visually inspected by the
// agent rather than read as text.
func (a Attachment) IsImage() bool {
	return len(a.MimeType) >= 6 && a.MimeType[:6] == "image/"
}

// Ticket is the persisted record shape. Field names match the on-disk JSON
// that agents locate by id and rewrite directly.
type Ticket struct {
	ID              string `json:"id"`
	WorkspaceID     string `json:"workspaceId"`
	TargetProjectID string `json:"targetProjectId,omitempty"`

	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`

	// IsCtoTicket marks the recurring self-review ticket. It cycles
	// TODO→WORKING→PENDING→TODO and never reaches DONE.
	IsCtoTicket bool `json:"isCtoTicket"`
	Disabled    bool `json:"disabled"`

	TicketNumber   int      `json:"ticketNumber,omitempty"`
	ParentTicketID string   `json:"parentTicketId,omitempty"`
	ChildTicketIDs []string `json:"childTicketIds,omitempty"`

	// Outcome fields written by the agent.
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
	Question string `json:"question,omitempty"`

	// ConversationHistoryPath points at a transcript the agent produced,
	// used to resume context after an interruption.
	ConversationHistoryPath string `json:"conversationHistoryPath,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
