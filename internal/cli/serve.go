package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hashicorp/mdns"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/notify"
	"github.com/crewdeck/crewdeck/internal/orchestrator"
	"github.com/crewdeck/crewdeck/internal/term"
	"github.com/crewdeck/crewdeck/internal/webserver"
)

const mdnsServiceType = "_crewdeck._tcp"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the panel server",
	Long:  `Start the HTTP/WebSocket server and the ticket orchestrator for every registered workspace.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 4777, "Port to listen on")
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().Bool("expose", false, "Bind to 0.0.0.0 for LAN access")
	serveCmd.Flags().String("auth-token", "", "Require Bearer token for API access (defaults to config)")
	serveCmd.Flags().Bool("mdns", false, "Advertise server on local network via mDNS/Bonjour")
	serveCmd.Flags().Bool("qr", false, "Print a QR code of the panel URL")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if isAgentContext() {
		return fmt.Errorf("serve is not available inside an agent session")
	}

	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	expose, _ := cmd.Flags().GetBool("expose")
	authToken, _ := cmd.Flags().GetString("auth-token")
	enableMDNS, _ := cmd.Flags().GetBool("mdns")
	printQR, _ := cmd.Flags().GetBool("qr")

	if expose {
		host = "0.0.0.0"
	}
	if authToken == "" {
		if cfg, err := config.Load(); err == nil {
			authToken = cfg.WebAuthToken
		}
	}
	if expose && authToken == "" {
		fmt.Fprintln(os.Stderr, "Warning: exposing the panel on all interfaces without an auth token.")
	}

	tickets, workspaces := services()
	terminal := term.NewManager()
	center := notify.NewCenter(func() *config.PushoverConfig {
		cfg, err := config.Load()
		if err != nil {
			return nil
		}
		return &cfg.Pushover
	})
	orch := orchestrator.New(orchestrator.Options{
		Store:      tickets,
		Terminal:   terminal,
		Workspaces: workspaces,
		Notifier:   center,
	})

	// One shared channel carries panel events from every producer to the
	// websocket fan-out.
	panelEvents := make(chan any, 256)
	terminal.SetEventCh(panelEvents)
	orch.SetEventCh(panelEvents)
	center.SetEventCh(panelEvents)
	terminal.OnClosed(orch.HandleSessionClosed)

	srv := webserver.New(webserver.Deps{
		Tickets:    tickets,
		Workspaces: workspaces,
		Terminal:   terminal,
		Orch:       orch,
		Notify:     center,
		Events:     panelEvents,
	}, webserver.Options{
		Host:      host,
		Port:      port,
		AuthToken: authToken,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			fmt.Fprintf(os.Stderr, "Port %d is already in use.\n", port)
			fmt.Fprintf(os.Stderr, "Try: crewdeck serve --port %d\n", port+1)
		}
		return fmt.Errorf("starting panel server: %w", err)
	}

	// Resume every registered workspace; the first becomes the foreground
	// until the frontend says otherwise.
	all, err := workspaces.List()
	if err != nil {
		return fmt.Errorf("loading workspaces: %w", err)
	}
	for _, w := range all {
		orch.TrackWorkspace(w.ID)
	}
	if len(all) > 0 {
		orch.SetForeground(all[0].ID)
	}

	go orch.RunPoller(ctx)

	url := "http://" + srv.Addr()
	// Clickable URL for terminals that support OSC 8 hyperlinks.
	fmt.Printf("\033]8;;%s\033\\%s\033]8;;\033\\\n", url, url)
	if len(all) > 0 {
		label := "workspaces"
		if len(all) == 1 {
			label = "workspace"
		}
		fmt.Printf("Tracking %d %s.\n", len(all), label)
	}
	if authToken != "" {
		fmt.Println("Auth token required for API access.")
	}
	if printQR || expose {
		if err := printPanelQRCode(url); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to render QR code: %v\n", err)
		}
	}

	if enableMDNS || expose {
		server, err := startMDNSService(srv.Addr(), url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to start mDNS advertisement: %v\n", err)
		} else {
			defer server.Shutdown()
		}
	}

	<-ctx.Done()

	terminal.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down panel server: %w", err)
	}
	return nil
}

func startMDNSService(addr, url string) (*mdns.Server, error) {
	_, port := splitHostPort(addr)
	if port <= 0 {
		return nil, fmt.Errorf("invalid port for mDNS advertisement: %q", addr)
	}
	txtRecords := []string{
		"panel=crewdeck",
		fmt.Sprintf("url=%s", url),
	}
	service, err := mdns.NewMDNSService("crewdeck", mdnsServiceType, "local", "", port, nil, txtRecords)
	if err != nil {
		return nil, err
	}
	return mdns.NewServer(&mdns.Config{
		Zone: service,
	})
}

func printPanelQRCode(url string) error {
	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return err
	}
	fmt.Println(code.ToString(false))
	return nil
}

func splitHostPort(addr string) (string, int) {
	host, rawPort, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return host, 0
	}
	return host, port
}
