package orchestrator

import "github.com/crewdeck/crewdeck/internal/ticket"

// Transition is one observed status change between two snapshots.
type Transition struct {
	// Ticket is the current record (carrying the new status).
	Ticket ticket.Ticket
	From   ticket.Status
	To     ticket.Status
}

// DiffTransitions compares two ticket lists by status only and returns the
// changes, in current-list order. Tickets absent from prev are new to this
// orchestrator (first load, or just created) and produce no transition;
// tickets deleted from curr likewise. Pure function.
func DiffTransitions(prev, curr []ticket.Ticket) []Transition {
	if len(curr) == 0 {
		return nil
	}
	prevStatus := make(map[string]ticket.Status, len(prev))
	for _, t := range prev {
		prevStatus[t.ID] = t.Status
	}

	var out []Transition
	for _, t := range curr {
		from, known := prevStatus[t.ID]
		if !known || from == t.Status {
			continue
		}
		out = append(out, Transition{Ticket: t, From: from, To: t.Status})
	}
	return out
}
