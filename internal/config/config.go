// Package config loads agent configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ChamsBouzaiene/taskpilot/internal/debug"
)

const (
	defaultMaxIterations               = 50
	defaultRateLimit                   = 60
	defaultMaxConsecutiveAutoApprovals = 3
	defaultMaxCheckpoints              = 10
)

// StateStorage selects and tunes the persistence backend.
type StateStorage struct {
	Type           string `yaml:"type"` // "json" or "sqlite"
	Path           string `yaml:"path"`
	AutoCheckpoint bool   `yaml:"auto_checkpoint"`
	MaxCheckpoints int    `yaml:"max_checkpoints"`
}

// Breakpoint mirrors debug.Breakpoint in the config file. Enabled defaults
// to true when omitted.
type Breakpoint struct {
	Type      string `yaml:"type"`
	Condition string `yaml:"condition"`
	Enabled   *bool  `yaml:"enabled"`
}

// Debug holds the debug session settings.
type Debug struct {
	Enabled     bool                  `yaml:"enabled"`
	StepByStep  bool                  `yaml:"step_by_step"`
	Breakpoints map[string]Breakpoint `yaml:"breakpoints"`
}

// Config is the full agent configuration surface.
type Config struct {
	LLMProvider                 string       `yaml:"llm_provider"`
	APIKey                      string       `yaml:"api_key"`
	BaseURL                     string       `yaml:"base_url"`
	Model                       string       `yaml:"model"`
	WorkingDirectory            string       `yaml:"working_directory"`
	StateStorage                StateStorage `yaml:"state_storage"`
	RateLimit                   int          `yaml:"rate_limit"`
	AutoApproveTools            bool         `yaml:"auto_approve_tools"`
	MaxConsecutiveAutoApprovals int          `yaml:"max_consecutive_auto_approvals"`
	MaxIterations               int          `yaml:"max_iterations"`
	Debug                       Debug        `yaml:"debug"`
}

// Load reads and validates a YAML config file. api_key and base_url support
// ${ENV_VAR} substitution.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.APIKey, err = expandEnv(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	cfg.BaseURL, _ = expandEnv(cfg.BaseURL)

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.MaxConsecutiveAutoApprovals <= 0 {
		c.MaxConsecutiveAutoApprovals = defaultMaxConsecutiveAutoApprovals
	}
	if c.StateStorage.MaxCheckpoints <= 0 {
		c.StateStorage.MaxCheckpoints = defaultMaxCheckpoints
	}
	if c.StateStorage.Type == "" {
		c.StateStorage.Type = "json"
	}
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("api_key cannot be empty")
	}
	if c.StateStorage.Type != "json" && c.StateStorage.Type != "sqlite" {
		return fmt.Errorf("unknown state_storage.type: %s", c.StateStorage.Type)
	}
	if info, err := os.Stat(c.WorkingDirectory); err != nil || !info.IsDir() {
		return fmt.Errorf("working directory does not exist: %s", c.WorkingDirectory)
	}
	return nil
}

// DebugBreakpoints converts the configured breakpoints to runtime ones.
func (c *Config) DebugBreakpoints() map[string]debug.Breakpoint {
	out := make(map[string]debug.Breakpoint, len(c.Debug.Breakpoints))
	for name, bp := range c.Debug.Breakpoints {
		enabled := true
		if bp.Enabled != nil {
			enabled = *bp.Enabled
		}
		out[name] = debug.Breakpoint{
			Kind:      debug.Kind(bp.Type),
			Condition: bp.Condition,
			Enabled:   enabled,
		}
	}
	return out
}

// expandEnv resolves a ${ENV_VAR} reference; plain values pass through.
func expandEnv(value string) (string, error) {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value, nil
	}
	name := value[2 : len(value)-1]
	resolved := os.Getenv(name)
	if resolved == "" {
		return "", fmt.Errorf("environment variable %s not found", name)
	}
	return resolved, nil
}
