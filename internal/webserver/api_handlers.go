package webserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/debug"
	"github.com/crewdeck/crewdeck/internal/ticket"
	"github.com/crewdeck/crewdeck/internal/workspace"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		debug.LogKV("webserver", "failed to encode json response", "status", status, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// --- Workspaces ---

func (srv *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	all, err := srv.deps.Workspaces.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if all == nil {
		all = []workspace.Workspace{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (srv *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var ws workspace.Workspace
	if !decodeJSONBody(w, r, &ws) {
		return
	}
	if err := srv.deps.Workspaces.Create(&ws); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	srv.deps.Orch.TrackWorkspace(ws.ID)
	writeJSON(w, http.StatusCreated, ws)
}

func (srv *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := srv.deps.Workspaces.Get(r.PathValue("workspaceID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (srv *Server) handleAddProject(w http.ResponseWriter, r *http.Request) {
	var p workspace.Project
	if !decodeJSONBody(w, r, &p) {
		return
	}
	workspaceID := r.PathValue("workspaceID")
	if err := srv.deps.Workspaces.AddProject(workspaceID, p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, err := srv.deps.Workspaces.Get(workspaceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// handleForeground tells the orchestrator which workspace the user is
// viewing; the previous foreground keeps reconciling in the background.
func (srv *Server) handleForeground(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceID")
	if _, err := srv.deps.Workspaces.Get(workspaceID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	srv.deps.Orch.SetForeground(workspaceID)
	w.WriteHeader(http.StatusNoContent)
}

// --- Tickets ---

func (srv *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := srv.deps.Tickets.List(r.PathValue("workspaceID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tickets == nil {
		tickets = []ticket.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (srv *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var t ticket.Ticket
	if !decodeJSONBody(w, r, &t) {
		return
	}
	t.WorkspaceID = r.PathValue("workspaceID")
	if strings.TrimSpace(t.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := srv.deps.Tickets.Create(&t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// A fresh TODO may be immediately runnable.
	srv.deps.Orch.PickAndLaunch(t.WorkspaceID)
	writeJSON(w, http.StatusCreated, t)
}

func (srv *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := srv.deps.Tickets.Get(r.PathValue("workspaceID"), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ticketPatch carries the user-editable fields. Pointers distinguish "not
// sent" from zero values.
type ticketPatch struct {
	Title           *string          `json:"title"`
	Description     *string          `json:"description"`
	Status          *ticket.Status   `json:"status"`
	Priority        *ticket.Priority `json:"priority"`
	TargetProjectID *string          `json:"targetProjectId"`
	Disabled        *bool            `json:"disabled"`
}

func (srv *Server) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	var patch ticketPatch
	if !decodeJSONBody(w, r, &patch) {
		return
	}
	workspaceID, id := r.PathValue("workspaceID"), r.PathValue("id")
	err := srv.deps.Tickets.Update(workspaceID, id, func(t *ticket.Ticket) {
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.TargetProjectID != nil {
			t.TargetProjectID = *patch.TargetProjectID
		}
		if patch.Disabled != nil {
			t.Disabled = *patch.Disabled
		}
	})
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	t, err := srv.deps.Tickets.Get(workspaceID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Status edits take effect on the next reconciliation cycle; nudge it so
	// a manual WORKING flip launches without waiting for the poll.
	if patch.Status != nil {
		srv.deps.Orch.Reconcile(workspaceID)
	}
	writeJSON(w, http.StatusOK, t)
}

func (srv *Server) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := srv.deps.Tickets.Delete(r.PathValue("id"), r.PathValue("workspaceID")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStartTicket launches a ticket's agent session directly, bypassing the
// scheduler's ordering.
func (srv *Server) handleStartTicket(w http.ResponseWriter, r *http.Request) {
	t, err := srv.deps.Tickets.Get(r.PathValue("workspaceID"), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if t.Disabled {
		writeError(w, http.StatusConflict, "ticket is disabled")
		return
	}
	srv.deps.Orch.Launch(*t)
	w.WriteHeader(http.StatusAccepted)
}

type attachmentRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

func (srv *Server) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	var req attachmentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "data must be base64")
		return
	}
	att, err := srv.deps.Tickets.AddAttachment(r.PathValue("workspaceID"), r.PathValue("id"), req.Filename, req.MimeType, data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

// --- Sessions ---

func (srv *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.deps.Terminal.List())
}

func (srv *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	srv.deps.Terminal.Close(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// --- Notifications ---

func (srv *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.deps.Notify.History())
}

func (srv *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	srv.deps.Notify.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// --- Settings ---

type settingsResponse struct {
	AgentCommand     string             `json:"agentCommand"`
	AgentArgs        []string           `json:"agentArgs,omitempty"`
	PollIntervalSecs int                `json:"pollIntervalSecs"`
	Preferences      config.Preferences `json:"preferences"`
	PushoverSet      bool               `json:"pushoverConfigured"`
}

func (srv *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		AgentCommand:     cfg.EffectiveAgentCommand(),
		AgentArgs:        cfg.AgentArgs,
		PollIntervalSecs: cfg.EffectivePollIntervalSecs(),
		Preferences:      cfg.Preferences,
		PushoverSet:      cfg.Pushover.UserKey != "" && cfg.Pushover.AppToken != "",
	})
}

type settingsPatch struct {
	AgentCommand     *string             `json:"agentCommand"`
	AgentArgs        *[]string           `json:"agentArgs"`
	PollIntervalSecs *int                `json:"pollIntervalSecs"`
	Preferences      *config.Preferences `json:"preferences"`
}

func (srv *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if !decodeJSONBody(w, r, &patch) {
		return
	}
	cfg, err := config.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if patch.AgentCommand != nil {
		cfg.AgentCommand = *patch.AgentCommand
	}
	if patch.AgentArgs != nil {
		cfg.AgentArgs = *patch.AgentArgs
	}
	if patch.PollIntervalSecs != nil {
		cfg.PollIntervalSecs = *patch.PollIntervalSecs
	}
	if patch.Preferences != nil {
		cfg.Preferences = *patch.Preferences
	}
	if err := config.Save(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	srv.handleGetSettings(w, r)
}
