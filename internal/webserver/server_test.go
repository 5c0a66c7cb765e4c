package webserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crewdeck/crewdeck/internal/notify"
	"github.com/crewdeck/crewdeck/internal/orchestrator"
	"github.com/crewdeck/crewdeck/internal/term"
	"github.com/crewdeck/crewdeck/internal/ticket"
	"github.com/crewdeck/crewdeck/internal/workspace"
)

func newTestServer(t *testing.T) (*Server, *ticket.Store, *workspace.Service) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	tickets := ticket.NewStore(root)
	workspaces := workspace.NewService(root)
	terminal := term.NewManager()
	center := notify.NewCenter(nil)
	orch := orchestrator.New(orchestrator.Options{
		Store:      tickets,
		Terminal:   terminal,
		Workspaces: workspaces,
		Notifier:   center,
	})

	srv := New(Deps{
		Tickets:    tickets,
		Workspaces: workspaces,
		Terminal:   terminal,
		Orch:       orch,
		Notify:     center,
	}, Options{})
	return srv, tickets, workspaces
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestWorkspaceLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/workspaces", map[string]any{"name": "main"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[workspace.Workspace](t, rec)
	if created.ID == "" {
		t.Fatal("no id assigned")
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/workspaces", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if all := decodeBody[[]workspace.Workspace](t, rec); len(all) != 1 || all[0].Name != "main" {
		t.Errorf("list = %+v", all)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/workspaces/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/workspaces/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing workspace status = %d", rec.Code)
	}
}

func TestTicketLifecycle(t *testing.T) {
	srv, _, workspaces := newTestServer(t)
	ws := &workspace.Workspace{Name: "main"}
	if err := workspaces.Create(ws); err != nil {
		t.Fatal(err)
	}
	base := "/api/workspaces/" + ws.ID + "/tickets"

	rec := doJSON(t, srv, http.MethodPost, base, map[string]any{
		"title":    "fix login",
		"priority": "high",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[ticket.Ticket](t, rec)
	if created.Status != ticket.StatusTodo || created.TicketNumber != 1 {
		t.Errorf("created = %+v", created)
	}

	rec = doJSON(t, srv, http.MethodPost, base, map[string]any{"description": "no title"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("untitled create status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPut, base+"/"+created.ID, map[string]any{"priority": "critical"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[ticket.Ticket](t, rec); got.Priority != ticket.PriorityCritical || got.Title != "fix login" {
		t.Errorf("patched = %+v", got)
	}

	rec = doJSON(t, srv, http.MethodGet, base, nil)
	if got := decodeBody[[]ticket.Ticket](t, rec); len(got) != 1 {
		t.Errorf("list = %+v", got)
	}

	rec = doJSON(t, srv, http.MethodDelete, base+"/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, base+"/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestStartTicketValidation(t *testing.T) {
	srv, tickets, workspaces := newTestServer(t)
	ws := &workspace.Workspace{Name: "main"}
	workspaces.Create(ws)

	rec := doJSON(t, srv, http.MethodPost, "/api/workspaces/"+ws.ID+"/tickets/missing/start", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing ticket start status = %d", rec.Code)
	}

	tk := &ticket.Ticket{WorkspaceID: ws.ID, Title: "off", Disabled: true}
	if err := tickets.Create(tk); err != nil {
		t.Fatal(err)
	}
	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/workspaces/%s/tickets/%s/start", ws.ID, tk.ID), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("disabled ticket start status = %d", rec.Code)
	}
}

func TestNotificationsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.deps.Notify.Notify(notify.SeverityInfo, "hello", "world", "")

	rec := doJSON(t, srv, http.MethodGet, "/api/notifications", nil)
	if got := decodeBody[[]notify.Notification](t, rec); len(got) != 1 || got[0].Title != "hello" {
		t.Errorf("notifications = %+v", got)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/notifications", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/notifications", nil)
	if got := decodeBody[[]notify.Notification](t, rec); len(got) != 0 {
		t.Errorf("notifications after clear = %+v", got)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decodeBody[settingsResponse](t, rec)
	if got.AgentCommand != "claude" || got.PollIntervalSecs != 3 {
		t.Errorf("defaults = %+v", got)
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/settings", map[string]any{
		"agentCommand": "myagent",
		"preferences":  map[string]any{"auto_close_completed_terminals": true},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body.String())
	}
	got = decodeBody[settingsResponse](t, rec)
	if got.AgentCommand != "myagent" || !got.Preferences.AutoCloseCompletedTerminals {
		t.Errorf("updated = %+v", got)
	}
}

func TestUnknownAPIRoute(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/does/not/exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSessionsEndpointEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody[[]term.Info](t, rec); len(got) != 0 {
		t.Errorf("sessions = %+v", got)
	}
}
