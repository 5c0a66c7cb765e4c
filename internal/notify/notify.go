// Package notify is the panel's notification sink. Every notification lands
// in a capped in-memory feed served over the API; severities at warn and
// above are additionally forwarded to Pushover when credentials exist.
package notify

import (
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/internal/debug"
	"github.com/crewdeck/crewdeck/internal/eventq"
	"github.com/crewdeck/crewdeck/internal/events"
	"github.com/crewdeck/crewdeck/internal/pushover"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarn    Severity = "warn"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// historyCap bounds the in-memory feed.
const historyCap = 200

// Notification is one entry in the feed.
type Notification struct {
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	NavTarget string    `json:"navTarget,omitempty"`
	At        time.Time `json:"at"`
}

// Center collects notifications and fans them out to the event stream and
// Pushover. All methods are safe for concurrent use.
type Center struct {
	mu      sync.Mutex
	history []Notification
	eventCh chan any

	// pushoverCfg is resolved at send time so config edits take effect
	// without a restart.
	pushoverCfg func() *config.PushoverConfig
}

// NewCenter creates a Center. cfgFn may be nil to disable Pushover forwarding.
func NewCenter(cfgFn func() *config.PushoverConfig) *Center {
	return &Center{pushoverCfg: cfgFn}
}

// SetEventCh sets the channel notifications are mirrored to. Sends never
// block; a full channel drops the event.
func (c *Center) SetEventCh(ch chan any) {
	c.mu.Lock()
	c.eventCh = ch
	c.mu.Unlock()
}

// Notify records a notification. navTarget optionally names a workspace or
// ticket the frontend should navigate to when the entry is clicked.
func (c *Center) Notify(sev Severity, title, body, navTarget string) {
	n := Notification{
		Severity:  sev,
		Title:     title,
		Body:      body,
		NavTarget: navTarget,
		At:        time.Now().UTC(),
	}

	c.mu.Lock()
	c.history = append(c.history, n)
	if len(c.history) > historyCap {
		c.history = c.history[len(c.history)-historyCap:]
	}
	ch := c.eventCh
	cfgFn := c.pushoverCfg
	c.mu.Unlock()

	if ch != nil {
		eventq.Offer[any](ch, events.NotificationMsg{
			Severity:  string(n.Severity),
			Title:     n.Title,
			Body:      n.Body,
			NavTarget: n.NavTarget,
			At:        n.At,
		})
	}

	if sev == SeverityInfo || cfgFn == nil {
		return
	}
	cfg := cfgFn()
	if !pushover.Configured(cfg) {
		return
	}
	// Forward asynchronously; a push failure never blocks or surfaces to the
	// caller.
	go func() {
		err := pushover.Send(cfg, pushover.Message{
			Title:    title,
			Body:     body,
			Priority: priorityFor(sev),
		})
		if err != nil {
			debug.LogKV("notify", "pushover send failed", "error", err)
		}
	}()
}

// History returns the feed, newest last.
func (c *Center) History() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.history))
	copy(out, c.history)
	return out
}

// Clear empties the feed.
func (c *Center) Clear() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}

func priorityFor(sev Severity) int {
	switch sev {
	case SeverityError:
		return pushover.PriorityHigh
	case SeverityWarn:
		return pushover.PriorityNormal
	default:
		return pushover.PriorityLow
	}
}
