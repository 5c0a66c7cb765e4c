package theme

import "github.com/charmbracelet/lipgloss"

// Color palette - dark theme inspired by Catppuccin Mocha
var (
	ColorBase     = lipgloss.Color("#1e1e2e")
	ColorSurface0 = lipgloss.Color("#313244")
	ColorOverlay0 = lipgloss.Color("#6c7086")
	ColorText     = lipgloss.Color("#cdd6f4")
	ColorSubtext0 = lipgloss.Color("#a6adc8")

	ColorRed    = lipgloss.Color("#f38ba8")
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorBlue   = lipgloss.Color("#89b4fa")
	ColorMauve  = lipgloss.Color("#cba6f7")
	ColorPeach  = lipgloss.Color("#fab387")
)

// Terminal tab colors, sent to the frontend as raw hex strings.
const (
	TabInProgress = "#f9e2af" // session bound, ticket WORKING
	TabSuccess    = "#a6e3a1" // ticket reached DONE
	TabFailure    = "#f38ba8" // ticket reached FAILED
	TabAttention  = "#fab387" // agent asked a question (PENDING)
)

// Ticket status indicator styles for CLI listings.
var (
	StatusTodo    = lipgloss.NewStyle().Foreground(ColorOverlay0).SetString("○")
	StatusWorking = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true).SetString("◐")
	StatusPending = lipgloss.NewStyle().Foreground(ColorPeach).Bold(true).SetString("?")
	StatusDone    = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true).SetString("●")
	StatusFailed  = lipgloss.NewStyle().Foreground(ColorRed).Bold(true).SetString("✗")
)

// StatusIndicator returns a styled one-glyph indicator for a ticket status.
func StatusIndicator(status string) string {
	switch status {
	case "WORKING":
		return StatusWorking.String()
	case "PENDING":
		return StatusPending.String()
	case "DONE":
		return StatusDone.String()
	case "FAILED":
		return StatusFailed.String()
	default:
		return StatusTodo.String()
	}
}
