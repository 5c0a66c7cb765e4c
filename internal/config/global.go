// Package config holds user-level configuration stored in ~/.crewdeck/config.json.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Preferences are the typed feature flags consumed by the orchestrator.
// Resolved once per reconciliation cycle, never read mid-cycle.
type Preferences struct {
	// AutoCloseCompletedTerminals closes a ticket's terminal tab shortly
	// after the ticket reaches DONE or FAILED.
	AutoCloseCompletedTerminals bool `json:"auto_close_completed_terminals"`

	// AutoCloseCtoTerminals closes a CTO ticket's terminal tab when its
	// review cycle ends (WORKING→TODO or auto-approved PENDING).
	AutoCloseCtoTerminals bool `json:"auto_close_cto_terminals"`
}

// PushoverConfig holds Pushover notification credentials.
type PushoverConfig struct {
	UserKey  string `json:"user_key,omitempty"`
	AppToken string `json:"app_token,omitempty"`
}

// GlobalConfig is the persisted user configuration.
type GlobalConfig struct {
	// AgentCommand is the coding-agent binary invoked inside ticket
	// terminals. Defaults to "claude".
	AgentCommand string `json:"agent_command,omitempty"`

	// AgentArgs are extra arguments appended to every agent invocation.
	AgentArgs []string `json:"agent_args,omitempty"`

	// PollIntervalSecs is the reconciliation poll interval. Defaults to 3.
	PollIntervalSecs int `json:"poll_interval_secs,omitempty"`

	Preferences Preferences    `json:"preferences"`
	Pushover    PushoverConfig `json:"pushover,omitempty"`

	// WebAuthToken, when set, is required as a Bearer token on the panel API.
	WebAuthToken string `json:"web_auth_token,omitempty"`
}

// DefaultAgentCommand is used when AgentCommand is unset.
const DefaultAgentCommand = "claude"

// Dir returns the global crewdeck config directory (~/.crewdeck), creating it
// if needed.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".crewdeck")
	os.MkdirAll(dir, 0755)
	return dir
}

func configPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads ~/.crewdeck/config.json, returning defaults if the file is absent.
func Load() (*GlobalConfig, error) {
	data, err := os.ReadFile(configPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}

	var cfg GlobalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config to ~/.crewdeck/config.json.
func Save(cfg *GlobalConfig) error {
	if cfg == nil {
		cfg = &GlobalConfig{}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath(), data, 0644)
}

// EffectiveAgentCommand returns the configured agent binary, or the default.
func (c *GlobalConfig) EffectiveAgentCommand() string {
	if cmd := strings.TrimSpace(c.AgentCommand); cmd != "" {
		return cmd
	}
	return DefaultAgentCommand
}

// EffectivePollIntervalSecs returns the poll interval, or the default of 3.
func (c *GlobalConfig) EffectivePollIntervalSecs() int {
	if c.PollIntervalSecs > 0 {
		return c.PollIntervalSecs
	}
	return 3
}
