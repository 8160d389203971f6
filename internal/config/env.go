package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LookupFunc returns the value of an environment variable. os.Getenv satisfies it.
type LookupFunc func(key string) string

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv copies credentials and endpoint overrides from the environment into cfg.
// Credentials are never read from the YAML file.
func ApplyEnv(cfg *Config, getenv LookupFunc) {
	if v := getenv("JUDGE0_BASE_URL"); v != "" {
		cfg.Sandbox.BaseURL = strings.TrimRight(v, "/")
	}
	cfg.Sandbox.Token = getenv("JUDGE0_API_TOKEN")

	if v := getenv("JIRA_BASE_URL"); v != "" {
		cfg.Tracker.BaseURL = strings.TrimRight(v, "/")
	}
	cfg.Tracker.Username = getenv("JIRA_USERNAME")
	cfg.Tracker.APIToken = getenv("JIRA_API_TOKEN")
	if v := getenv("JIRA_PROJECT_KEY"); v != "" {
		cfg.Tracker.ProjectKey = v
	}
	if v := getenv("GITHUB_REPOSITORY"); v != "" && cfg.Tracker.Repo == "" {
		cfg.Tracker.Repo = v
	}

	cfg.Suggest.APIKey = getenv("OPENAI_API_KEY")
	if v := getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Suggest.BaseURL = v
	}

	cfg.Database.DSN = getenv("FIXLOOP_DATABASE_URL")
}

