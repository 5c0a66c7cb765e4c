package webserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/crewdeck/crewdeck/internal/debug"
	"github.com/crewdeck/crewdeck/internal/eventq"
	"github.com/crewdeck/crewdeck/internal/events"
)

type terminalWSMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

// handleTerminalWebSocket bridges a session's pty to the frontend terminal:
// output flows out as base64 frames (starting with the buffered backlog),
// input and resize messages flow in.
func (srv *Server) handleTerminalWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if !srv.deps.Terminal.IsLive(sessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer ws.CloseNow()

	ctx := r.Context()

	subID, outCh, backlog, err := srv.deps.Terminal.Subscribe(sessionID)
	if err != nil {
		ws.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer srv.deps.Terminal.Unsubscribe(sessionID, subID)

	var writeMu sync.Mutex
	send := func(msg terminalWSMessage) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return ws.Write(writeCtx, websocket.MessageText, data)
	}

	if len(backlog) > 0 {
		if err := send(terminalWSMessage{Type: "output", Data: base64.StdEncoding.EncodeToString(backlog)}); err != nil {
			return
		}
	}

	go func() {
		for chunk := range outCh {
			out := terminalWSMessage{
				Type: "output",
				Data: base64.StdEncoding.EncodeToString(chunk),
			}
			if err := send(out); err != nil {
				ws.CloseNow()
				return
			}
		}
		// Channel closed: the session ended.
		_ = send(terminalWSMessage{Type: "exit"})
		ws.Close(websocket.StatusNormalClosure, "session closed")
	}()

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}

		var msg terminalWSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "input":
			if msg.Data == "" {
				continue
			}
			decoded, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil || len(decoded) == 0 {
				continue
			}
			if err := srv.deps.Terminal.Write(sessionID, decoded); err != nil {
				return
			}

		case "resize":
			if msg.Cols <= 0 || msg.Rows <= 0 {
				continue
			}
			_ = srv.deps.Terminal.Resize(sessionID, msg.Cols, msg.Rows)
		}
	}
}

// eventEnvelope is the wire shape of panel events on /ws/events.
type eventEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func envelopeFor(msg any) (eventEnvelope, bool) {
	switch msg.(type) {
	case events.TicketChangedMsg:
		return eventEnvelope{Type: "ticket_changed", Payload: msg}, true
	case events.SessionOpenedMsg:
		return eventEnvelope{Type: "session_opened", Payload: msg}, true
	case events.SessionClosedMsg:
		return eventEnvelope{Type: "session_closed", Payload: msg}, true
	case events.SessionColorMsg:
		return eventEnvelope{Type: "session_color", Payload: msg}, true
	case events.SessionActivityMsg:
		return eventEnvelope{Type: "session_activity", Payload: msg}, true
	case events.SessionFocusMsg:
		return eventEnvelope{Type: "session_focus", Payload: msg}, true
	case events.NotificationMsg:
		return eventEnvelope{Type: "notification", Payload: msg}, true
	default:
		return eventEnvelope{}, false
	}
}

// eventHub fans panel events out to connected /ws/events clients. Slow
// clients drop frames rather than stalling the pump.
type eventHub struct {
	mu     sync.Mutex
	subs   map[int]chan []byte
	nextID int
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan []byte)}
}

func (h *eventHub) pump(ctx context.Context, ch chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			env, ok := envelopeFor(msg)
			if !ok {
				debug.LogKV("webserver", "unknown event type dropped", "type", fmt.Sprintf("%T", msg))
				continue
			}
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			h.broadcast(ctx, data)
		}
	}
}

func (h *eventHub) broadcast(ctx context.Context, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		eventq.OfferContext(ctx, sub, data)
	}
}

func (h *eventHub) subscribe() (int, chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan []byte, 64)
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

func (h *eventHub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// handleEventsWebSocket streams panel events to the frontend.
func (srv *Server) handleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer ws.CloseNow()

	ctx := r.Context()
	id, ch := srv.hub.subscribe()
	defer srv.hub.unsubscribe(id)

	// Reads are drained only to detect disconnects.
	go func() {
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
