package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a configuration from the given YAML file path.
// After parsing, it fills in defaults for everything the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the
// first one found. Search order: ./fixloop.yaml, ~/.fixloop/config.yaml.
// When neither exists it returns the built-in defaults.
func LoadDefault() (*Config, error) {
	candidates := []string{"fixloop.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".fixloop", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return Default(), nil
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults fills unset fields and parses duration strings.
// Unparseable durations are left at zero; Validate reports them.
func applyDefaults(cfg *Config) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".py"}
	}
	if cfg.Fixtures == "" {
		cfg.Fixtures = "user_test_cases.json"
	}
	if cfg.ReportsDir == "" {
		cfg.ReportsDir = ".fixloop/reports"
	}

	s := &cfg.Sandbox
	if s.BaseURL == "" {
		s.BaseURL = "https://api.judge0.com"
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.AuthHeader == "" {
		s.AuthHeader = "Authorization"
	}
	if s.RequestsPerSecond <= 0 {
		s.RequestsPerSecond = 5
	}
	s.PollIntervalDur = parseDuration(s.PollInterval, 500*time.Millisecond)
	s.PollMaxIntervalDur = parseDuration(s.PollMaxInterval, 5*time.Second)
	s.PollTimeoutDur = parseDuration(s.PollTimeout, 2*time.Minute)
	s.HTTPTimeoutDur = parseDuration(s.HTTPTimeout, 30*time.Second)

	t := &cfg.Tracker
	if t.Kind == "" {
		t.Kind = TrackerLog
	}
	if t.IssueType == "" {
		t.IssueType = "Bug"
	}
	if t.Summary == "" {
		t.Summary = "Error in code file"
	}

	g := &cfg.Suggest
	if g.Provider == "" {
		g.Provider = ProviderOpenAI
	}
	if g.Model == "" {
		switch g.Provider {
		case ProviderClaude:
			g.Model = "sonnet"
		default:
			g.Model = "gpt-4o-mini"
		}
	}
	if g.MaxTokens <= 0 {
		g.MaxTokens = 1024
	}
	g.TimeoutDur = parseDuration(g.Timeout, 2*time.Minute)

	r := &cfg.Repair
	if r.MaxRounds == 0 {
		r.MaxRounds = 3
	}
	if r.PatchMode == "" {
		r.PatchMode = PatchReplaceFile
	}
	if r.MaxErrorBytes <= 0 {
		r.MaxErrorBytes = 8000
	}
	r.RoundBudgetDur = parseDuration(r.RoundBudget, 0)

	l := &cfg.Log
	if l.Level == "" {
		l.Level = "info"
	}
	if l.MaxSizeMB <= 0 {
		l.MaxSizeMB = 10
	}
	if l.MaxBackups <= 0 {
		l.MaxBackups = 3
	}
	if l.MaxAgeDays <= 0 {
		l.MaxAgeDays = 28
	}
}

// parseDuration parses s, returning def when s is empty and 0 when s is invalid.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
