package notify

import (
	"fmt"
	"testing"

	"github.com/crewdeck/crewdeck/internal/events"
)

func TestNotifyAppendsHistory(t *testing.T) {
	c := NewCenter(nil)
	c.Notify(SeveritySuccess, "Ticket done", "shipped it", "ws1")

	h := c.History()
	if len(h) != 1 {
		t.Fatalf("history len = %d", len(h))
	}
	if h[0].Title != "Ticket done" || h[0].NavTarget != "ws1" {
		t.Errorf("entry = %+v", h[0])
	}
	if h[0].At.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestHistoryCapped(t *testing.T) {
	c := NewCenter(nil)
	for i := 0; i < historyCap+25; i++ {
		c.Notify(SeverityInfo, fmt.Sprintf("n%d", i), "", "")
	}
	h := c.History()
	if len(h) != historyCap {
		t.Fatalf("history len = %d, want %d", len(h), historyCap)
	}
	if h[0].Title != "n25" {
		t.Errorf("oldest kept = %q, want n25", h[0].Title)
	}
}

func TestNotifyMirrorsToEventCh(t *testing.T) {
	c := NewCenter(nil)
	ch := make(chan any, 4)
	c.SetEventCh(ch)

	c.Notify(SeverityError, "boom", "it broke", "")

	select {
	case msg := <-ch:
		nm, ok := msg.(events.NotificationMsg)
		if !ok {
			t.Fatalf("unexpected message type %T", msg)
		}
		if nm.Severity != "error" || nm.Title != "boom" {
			t.Errorf("msg = %+v", nm)
		}
	default:
		t.Fatal("no event offered")
	}
}

func TestNotifyFullChannelDoesNotBlock(t *testing.T) {
	c := NewCenter(nil)
	ch := make(chan any) // unbuffered, nobody reading
	c.SetEventCh(ch)
	c.Notify(SeverityInfo, "dropped", "", "")

	if len(c.History()) != 1 {
		t.Error("notification lost from history")
	}
}

func TestClear(t *testing.T) {
	c := NewCenter(nil)
	c.Notify(SeverityInfo, "a", "", "")
	c.Clear()
	if len(c.History()) != 0 {
		t.Error("history not cleared")
	}
}
