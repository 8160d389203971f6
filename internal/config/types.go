package config

import "time"

// Config is the top-level configuration parsed from fixloop.yaml.
type Config struct {
	Root       string         `yaml:"root"`
	Extensions []string       `yaml:"extensions"`
	Exclude    []string       `yaml:"exclude"`
	Fixtures   string         `yaml:"fixtures"`
	ReportsDir string         `yaml:"reports_dir"`
	Languages  map[string]int `yaml:"languages"`
	Sandbox    Sandbox        `yaml:"sandbox"`
	Tracker    Tracker        `yaml:"tracker"`
	Suggest    Suggest        `yaml:"suggest"`
	Repair     Repair         `yaml:"repair"`
	Database   Database       `yaml:"database"`
	Log        Log            `yaml:"log"`
	Metrics    Metrics        `yaml:"metrics"`
}

// Sandbox configures the remote execution service.
type Sandbox struct {
	BaseURL           string  `yaml:"base_url"`
	Token             string  `yaml:"-"`
	AuthHeader        string  `yaml:"auth_header"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	PollInterval      string  `yaml:"poll_interval"`
	PollMaxInterval   string  `yaml:"poll_max_interval"`
	PollTimeout       string  `yaml:"poll_timeout"`
	HTTPTimeout       string  `yaml:"http_timeout"`

	PollIntervalDur    time.Duration `yaml:"-"`
	PollMaxIntervalDur time.Duration `yaml:"-"`
	PollTimeoutDur     time.Duration `yaml:"-"`
	HTTPTimeoutDur     time.Duration `yaml:"-"`
}

// Tracker configures where failure tickets are filed.
type Tracker struct {
	Kind       string   `yaml:"kind"` // "jira", "github", "log"
	ProjectKey string   `yaml:"project_key"`
	IssueType  string   `yaml:"issue_type"`
	Summary    string   `yaml:"summary"`
	Labels     []string `yaml:"labels"`
	Dedupe     bool     `yaml:"dedupe"`

	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"-"`
	APIToken string `yaml:"-"`
	Repo     string `yaml:"repo"`
}

// Suggest configures the text-completion service.
type Suggest struct {
	Provider    string  `yaml:"provider"` // "openai", "claude"
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"-"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	Template    string  `yaml:"template"`
	Timeout     string  `yaml:"timeout"`

	TimeoutDur time.Duration `yaml:"-"`
}

// Repair configures the repair loop bounds and patch semantics.
type Repair struct {
	MaxRounds     int    `yaml:"max_rounds"`
	RoundBudget   string `yaml:"round_budget"`
	PatchMode     string `yaml:"patch_mode"` // "replace_file", "substitute"
	DryRun        bool   `yaml:"dry_run"`
	MaxErrorBytes int    `yaml:"max_error_bytes"`

	RoundBudgetDur time.Duration `yaml:"-"`
}

// Database configures the optional history store.
type Database struct {
	DSN            string `yaml:"-"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// Log configures the process logger.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Addr string `yaml:"addr"`
}

const (
	TrackerJira   = "jira"
	TrackerGitHub = "github"
	TrackerLog    = "log"

	ProviderOpenAI = "openai"
	ProviderClaude = "claude"

	PatchReplaceFile = "replace_file"
	PatchSubstitute  = "substitute"
)
