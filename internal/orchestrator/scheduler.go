package orchestrator

import "github.com/crewdeck/crewdeck/internal/ticket"

// PickNext selects the next runnable ticket: status TODO and not disabled,
// CTO tickets always after regular work, then ascending priority rank, ties
// broken by earliest createdAt. Returns nil when nothing is eligible.
// Pure and deterministic.
func PickNext(tickets []ticket.Ticket) *ticket.Ticket {
	var best *ticket.Ticket
	for i := range tickets {
		t := &tickets[i]
		if t.Status != ticket.StatusTodo || t.Disabled {
			continue
		}
		if best == nil || runsBefore(t, best) {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	picked := *best
	return &picked
}

// runsBefore orders two eligible tickets. CTO work must never block regular
// work, regardless of priority.
func runsBefore(a, b *ticket.Ticket) bool {
	if a.IsCtoTicket != b.IsCtoTicket {
		return !a.IsCtoTicket
	}
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra < rb
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
