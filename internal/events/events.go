// Package events defines the typed messages published on the panel event
// stream. The webserver forwards them to connected frontends as JSON.
package events

import "time"

// TicketChangedMsg signals that a ticket's status moved during reconciliation.
type TicketChangedMsg struct {
	WorkspaceID string `json:"workspaceId"`
	TicketID    string `json:"ticketId"`
	From        string `json:"from"`
	To          string `json:"to"`
}

// SessionOpenedMsg signals a new terminal session bound to a ticket.
type SessionOpenedMsg struct {
	WorkspaceID string `json:"workspaceId"`
	TicketID    string `json:"ticketId"`
	SessionID   string `json:"sessionId"`
	Label       string `json:"label"`
}

// SessionClosedMsg signals that a terminal session ended or was closed.
type SessionClosedMsg struct {
	SessionID string `json:"sessionId"`
}

// SessionColorMsg carries a tab color change for a session.
type SessionColorMsg struct {
	SessionID string `json:"sessionId"`
	Color     string `json:"color"`
}

// SessionActivityMsg marks a session tab as needing (or no longer needing)
// the user's attention.
type SessionActivityMsg struct {
	SessionID string `json:"sessionId"`
	Active    bool   `json:"active"`
}

// SessionFocusMsg asks the frontend to bring a session tab to the foreground.
type SessionFocusMsg struct {
	SessionID string `json:"sessionId"`
}

// NotificationMsg mirrors a notification pushed to the sink.
type NotificationMsg struct {
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	NavTarget string    `json:"navTarget,omitempty"`
	At        time.Time `json:"at"`
}
