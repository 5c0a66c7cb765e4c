package orchestrator

import (
	"testing"
	"time"

	"github.com/crewdeck/crewdeck/internal/ticket"
)

func TestPickNext_Empty(t *testing.T) {
	if got := PickNext(nil); got != nil {
		t.Errorf("PickNext(nil) = %v, want nil", got)
	}
	if got := PickNext([]ticket.Ticket{}); got != nil {
		t.Errorf("PickNext(empty) = %v, want nil", got)
	}
}

func TestPickNext_FiltersIneligible(t *testing.T) {
	tickets := []ticket.Ticket{
		{ID: "working", Status: ticket.StatusWorking, Priority: ticket.PriorityCritical},
		{ID: "done", Status: ticket.StatusDone, Priority: ticket.PriorityCritical},
		{ID: "pending", Status: ticket.StatusPending, Priority: ticket.PriorityCritical},
		{ID: "failed", Status: ticket.StatusFailed, Priority: ticket.PriorityCritical},
		{ID: "disabled", Status: ticket.StatusTodo, Priority: ticket.PriorityCritical, Disabled: true},
	}
	if got := PickNext(tickets); got != nil {
		t.Errorf("PickNext = %s, want nil", got.ID)
	}
}

func TestPickNext_CriticalBeatsHigh(t *testing.T) {
	tickets := []ticket.Ticket{
		{ID: "1", Status: ticket.StatusTodo, Priority: ticket.PriorityHigh},
		{ID: "2", Status: ticket.StatusTodo, Priority: ticket.PriorityCritical},
	}
	got := PickNext(tickets)
	if got == nil || got.ID != "2" {
		t.Fatalf("PickNext = %v, want ticket 2", got)
	}
}

func TestPickNext_PriorityOrdering(t *testing.T) {
	base := time.Now()
	tickets := []ticket.Ticket{
		{ID: "low", Status: ticket.StatusTodo, Priority: ticket.PriorityLow, CreatedAt: base},
		{ID: "med", Status: ticket.StatusTodo, Priority: ticket.PriorityMedium, CreatedAt: base},
		{ID: "high", Status: ticket.StatusTodo, Priority: ticket.PriorityHigh, CreatedAt: base},
	}
	got := PickNext(tickets)
	if got == nil || got.ID != "high" {
		t.Fatalf("PickNext = %v, want high", got)
	}
}

func TestPickNext_TiesResolveFIFO(t *testing.T) {
	base := time.Now()
	tickets := []ticket.Ticket{
		{ID: "newer", Status: ticket.StatusTodo, Priority: ticket.PriorityMedium, CreatedAt: base.Add(time.Hour)},
		{ID: "older", Status: ticket.StatusTodo, Priority: ticket.PriorityMedium, CreatedAt: base},
	}
	got := PickNext(tickets)
	if got == nil || got.ID != "older" {
		t.Fatalf("PickNext = %v, want older", got)
	}
}

func TestPickNext_CtoSortsLast(t *testing.T) {
	tickets := []ticket.Ticket{
		{ID: "3", Status: ticket.StatusTodo, Priority: ticket.PriorityCritical, IsCtoTicket: true},
		{ID: "4", Status: ticket.StatusTodo, Priority: ticket.PriorityLow},
	}
	got := PickNext(tickets)
	if got == nil || got.ID != "4" {
		t.Fatalf("PickNext = %v, want ticket 4 (CTO never blocks regular work)", got)
	}
}

func TestPickNext_CtoRunsWhenAlone(t *testing.T) {
	tickets := []ticket.Ticket{
		{ID: "cto", Status: ticket.StatusTodo, Priority: ticket.PriorityLow, IsCtoTicket: true},
		{ID: "done", Status: ticket.StatusDone, Priority: ticket.PriorityCritical},
	}
	got := PickNext(tickets)
	if got == nil || got.ID != "cto" {
		t.Fatalf("PickNext = %v, want cto", got)
	}
}

func TestPickNext_Deterministic(t *testing.T) {
	base := time.Now()
	tickets := []ticket.Ticket{
		{ID: "a", Status: ticket.StatusTodo, Priority: ticket.PriorityMedium, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "b", Status: ticket.StatusTodo, Priority: ticket.PriorityMedium, CreatedAt: base.Add(time.Minute)},
		{ID: "c", Status: ticket.StatusTodo, Priority: ticket.PriorityLow, CreatedAt: base},
	}
	first := PickNext(tickets)
	for i := 0; i < 10; i++ {
		if got := PickNext(tickets); got == nil || got.ID != first.ID {
			t.Fatalf("PickNext not deterministic: %v vs %v", got, first)
		}
	}
	if first.ID != "b" {
		t.Errorf("PickNext = %s, want b", first.ID)
	}
}

func TestPickNext_DoesNotMutateInput(t *testing.T) {
	tickets := []ticket.Ticket{
		{ID: "x", Status: ticket.StatusTodo, Priority: ticket.PriorityLow},
	}
	got := PickNext(tickets)
	got.Status = ticket.StatusWorking
	if tickets[0].Status != ticket.StatusTodo {
		t.Error("PickNext returned a pointer into the input slice")
	}
}
