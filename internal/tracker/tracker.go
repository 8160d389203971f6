// Package tracker files failure tickets with an issue tracker.
package tracker

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lucasnoah/fixloop/internal/config"
)

// Ticket is a failure report. Key and URL are set once the ticket is filed.
type Ticket struct {
	ProjectKey  string   `json:"project_key"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	IssueType   string   `json:"issue_type,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Key         string   `json:"key,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Tracker creates tickets. File does no deduplication.
type Tracker interface {
	File(ctx context.Context, t Ticket) (*Ticket, error)
	Name() string
}

// Describe builds a ticket description for a failure in path.
func Describe(path string, languageID int, errorText string) string {
	return fmt.Sprintf("Error in file: %s\nLanguage ID: %d\n\n%s", path, languageID, errorText)
}

// Summary builds a ticket summary from the configured prefix and path.
func Summary(prefix, path string) string {
	if prefix == "" {
		prefix = "Error in code file"
	}
	return fmt.Sprintf("%s: %s", prefix, filepath.Base(path))
}

// New builds the tracker selected by cfg.Kind. cmd is used by the github
// backend and may be nil to use the gh CLI.
func New(cfg config.Tracker, cmd CmdRunner, log *zap.SugaredLogger) (Tracker, error) {
	switch cfg.Kind {
	case config.TrackerJira:
		return NewJira(JiraOptions{
			BaseURL:  cfg.BaseURL,
			Username: cfg.Username,
			APIToken: cfg.APIToken,
		}), nil
	case config.TrackerGitHub:
		if cmd == nil {
			cmd = &ExecRunner{}
		}
		return NewGitHub(cmd, cfg.Repo), nil
	case config.TrackerLog, "":
		return NewLog(log), nil
	default:
		return nil, fmt.Errorf("unknown tracker kind %q", cfg.Kind)
	}
}
