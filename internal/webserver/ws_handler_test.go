package webserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/crewdeck/crewdeck/internal/events"
)

func TestEventHubBroadcastsEnvelopes(t *testing.T) {
	hub := newEventHub()
	id, ch := hub.subscribe()
	defer hub.unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := make(chan any, 1)
	go hub.pump(ctx, src)

	src <- events.TicketChangedMsg{WorkspaceID: "ws", TicketID: "t1", From: "TODO", To: "WORKING"}

	select {
	case data := <-ch:
		var env eventEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decoding %q: %v", data, err)
		}
		if env.Type != "ticket_changed" {
			t.Errorf("type = %q, want ticket_changed", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no event broadcast")
	}
}

func TestEventHubDropsAfterCancel(t *testing.T) {
	hub := newEventHub()
	id, ch := hub.subscribe()
	defer hub.unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.broadcast(ctx, []byte(`{"type":"notification"}`))

	if len(ch) != 0 {
		t.Error("broadcast delivered despite cancelled context")
	}
}
