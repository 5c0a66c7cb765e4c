// Package webserver hosts the HTTP API and WebSocket bridges the desktop
// panel frontend talks to. It serves data and byte streams only; rendering
// happens entirely on the frontend.
package webserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crewdeck/crewdeck/internal/debug"
	"github.com/crewdeck/crewdeck/internal/notify"
	"github.com/crewdeck/crewdeck/internal/orchestrator"
	"github.com/crewdeck/crewdeck/internal/term"
	"github.com/crewdeck/crewdeck/internal/ticket"
	"github.com/crewdeck/crewdeck/internal/workspace"
)

// Options configures web server behavior.
type Options struct {
	Host      string
	Port      int
	AuthToken string
}

// Deps are the services the API fronts.
type Deps struct {
	Tickets    *ticket.Store
	Workspaces *workspace.Service
	Terminal   *term.Manager
	Orch       *orchestrator.Orchestrator
	Notify     *notify.Center

	// Events is the channel the services offer panel events to; the server
	// fans it out to /ws/events subscribers.
	Events chan any
}

// Server hosts the HTTP API and WebSocket bridges.
type Server struct {
	deps       Deps
	hub        *eventHub
	httpServer *http.Server
	host       string
	port       int
	authToken  string
}

// New constructs a web server.
func New(deps Deps, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port <= 0 {
		port = 4777
	}

	srv := &Server{
		deps:      deps,
		hub:       newEventHub(),
		host:      host,
		port:      port,
		authToken: strings.TrimSpace(opts.AuthToken),
	}

	mux := http.NewServeMux()
	srv.setupRoutes(mux)

	handler := corsMiddleware(logMiddleware(authMiddleware(srv.authToken, mux)))
	srv.httpServer = &http.Server{
		Addr:              srv.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv
}

// Start begins serving in a background goroutine and returns immediately.
// The event fan-out pump runs until ctx is cancelled.
func (srv *Server) Start(ctx context.Context) error {
	if srv.httpServer == nil {
		return fmt.Errorf("webserver not initialized")
	}

	if srv.deps.Events != nil {
		go srv.hub.pump(ctx, srv.deps.Events)
	}

	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return err
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		srv.port = tcpAddr.Port
		srv.httpServer.Addr = srv.Addr()
	}

	go func() {
		if err := srv.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.LogKV("webserver", "server stopped with error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server.
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.httpServer == nil {
		return nil
	}
	return srv.httpServer.Shutdown(ctx)
}

// Addr returns the bound host:port address.
func (srv *Server) Addr() string {
	return net.JoinHostPort(srv.host, strconv.Itoa(srv.port))
}

func (srv *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/workspaces", srv.handleListWorkspaces)
	mux.HandleFunc("POST /api/workspaces", srv.handleCreateWorkspace)
	mux.HandleFunc("GET /api/workspaces/{workspaceID}", srv.handleGetWorkspace)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/projects", srv.handleAddProject)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/foreground", srv.handleForeground)

	mux.HandleFunc("GET /api/workspaces/{workspaceID}/tickets", srv.handleListTickets)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/tickets", srv.handleCreateTicket)
	mux.HandleFunc("GET /api/workspaces/{workspaceID}/tickets/{id}", srv.handleGetTicket)
	mux.HandleFunc("PUT /api/workspaces/{workspaceID}/tickets/{id}", srv.handleUpdateTicket)
	mux.HandleFunc("DELETE /api/workspaces/{workspaceID}/tickets/{id}", srv.handleDeleteTicket)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/tickets/{id}/start", srv.handleStartTicket)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/tickets/{id}/attachments", srv.handleAddAttachment)

	mux.HandleFunc("GET /api/sessions", srv.handleListSessions)
	mux.HandleFunc("POST /api/sessions/{id}/close", srv.handleCloseSession)

	mux.HandleFunc("GET /api/notifications", srv.handleListNotifications)
	mux.HandleFunc("DELETE /api/notifications", srv.handleClearNotifications)

	mux.HandleFunc("GET /api/settings", srv.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", srv.handleUpdateSettings)

	mux.HandleFunc("GET /ws/terminal/{id}", srv.handleTerminalWebSocket)
	mux.HandleFunc("GET /ws/events", srv.handleEventsWebSocket)

	mux.HandleFunc("GET /api/{rest...}", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}
