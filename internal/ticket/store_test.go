package ticket

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateAndList(t *testing.T) {
	s := NewStore(t.TempDir())

	tk := &Ticket{WorkspaceID: "ws1", Title: "first"}
	if err := s.Create(tk); err != nil {
		t.Fatal(err)
	}
	if tk.ID == "" {
		t.Error("expected non-empty id")
	}
	if tk.TicketNumber != 1 {
		t.Errorf("ticketNumber = %d, want 1", tk.TicketNumber)
	}
	if tk.Status != StatusTodo {
		t.Errorf("status = %q, want TODO", tk.Status)
	}

	second := &Ticket{WorkspaceID: "ws1", Title: "second"}
	if err := s.Create(second); err != nil {
		t.Fatal(err)
	}
	if second.TicketNumber != 2 {
		t.Errorf("second ticketNumber = %d, want 2", second.TicketNumber)
	}

	tickets, err := s.List("ws1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(tickets))
	}

	// A different workspace sees nothing.
	other, _ := s.List("ws2")
	if len(other) != 0 {
		t.Errorf("expected empty ws2, got %d tickets", len(other))
	}
}

func TestUpdateRefreshesUpdatedAt(t *testing.T) {
	s := NewStore(t.TempDir())
	tk := &Ticket{WorkspaceID: "ws1", Title: "x"}
	if err := s.Create(tk); err != nil {
		t.Fatal(err)
	}
	created := tk.UpdatedAt

	if err := s.Update("ws1", tk.ID, func(u *Ticket) {
		u.Status = StatusWorking
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("ws1", tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusWorking {
		t.Errorf("status = %q, want WORKING", got.Status)
	}
	if got.UpdatedAt.Before(created) {
		t.Error("updatedAt not refreshed")
	}
}

func TestUpdateMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Update("ws1", "nope", func(*Ticket) {}); err == nil {
		t.Error("expected error for missing ticket")
	}
}

func TestDelete(t *testing.T) {
	s := NewStore(t.TempDir())
	tk := &Ticket{WorkspaceID: "ws1", Title: "x"}
	s.Create(tk)

	if err := s.Delete(tk.ID, "ws1"); err != nil {
		t.Fatal(err)
	}
	tickets, _ := s.List("ws1")
	if len(tickets) != 0 {
		t.Errorf("expected 0 tickets, got %d", len(tickets))
	}
}

func TestExternalRewriteVisible(t *testing.T) {
	// Simulates the agent rewriting its record in the backing file directly.
	s := NewStore(t.TempDir())
	tk := &Ticket{WorkspaceID: "ws1", Title: "x", Status: StatusWorking}
	if err := s.Create(tk); err != nil {
		t.Fatal(err)
	}

	path, err := s.BackingPath("ws1")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	raw[0]["status"] = "DONE"
	raw[0]["result"] = "did the thing"
	out, _ := json.Marshal(raw)
	if err := os.WriteFile(path, out, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("ws1", tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusDone {
		t.Errorf("status = %q, want DONE", got.Status)
	}
	if got.Result != "did the thing" {
		t.Errorf("result = %q", got.Result)
	}
}

func TestPromptFiles(t *testing.T) {
	s := NewStore(t.TempDir())
	cwd := t.TempDir()

	if err := s.WritePrompt(cwd, "abc", "do the work"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(PromptPath(cwd, "abc"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "do the work" {
		t.Errorf("prompt = %q", data)
	}

	if err := s.CleanupPrompt(cwd, "abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(PromptPath(cwd, "abc")); !os.IsNotExist(err) {
		t.Error("prompt file still present after cleanup")
	}
	// Cleanup of a missing file is not an error.
	if err := s.CleanupPrompt(cwd, "abc"); err != nil {
		t.Errorf("second cleanup: %v", err)
	}
}

func TestLinkConversation(t *testing.T) {
	s := NewStore(t.TempDir())
	tk := &Ticket{WorkspaceID: "ws1", Title: "x"}
	s.Create(tk)
	cwd := t.TempDir()

	// No transcript present: no-op, no error.
	if err := s.LinkConversation(cwd, tk.ID, "ws1"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get("ws1", tk.ID)
	if got.ConversationHistoryPath != "" {
		t.Error("history path set without a transcript")
	}

	hist := HistoryPath(cwd, tk.ID)
	if err := os.WriteFile(hist, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkConversation(cwd, tk.ID, "ws1"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get("ws1", tk.ID)
	if got.ConversationHistoryPath != hist {
		t.Errorf("history path = %q, want %q", got.ConversationHistoryPath, hist)
	}
}

func TestAddAttachment(t *testing.T) {
	s := NewStore(t.TempDir())
	tk := &Ticket{WorkspaceID: "ws1", Title: "x"}
	s.Create(tk)

	att, err := s.AddAttachment("ws1", tk.ID, "shot.png", "image/png", []byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if !att.IsImage() {
		t.Error("png attachment should be an image")
	}
	if filepath.Base(att.StoredPath) == "" {
		t.Error("empty stored path")
	}
	got, _ := s.Get("ws1", tk.ID)
	if len(got.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(got.Attachments))
	}
}
