package tracker

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// CmdRunner provides gh command execution. Interface for testing.
type CmdRunner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecRunner runs gh commands via exec.
type ExecRunner struct{}

func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("gh %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// GitHub files tickets as GitHub issues through the gh CLI.
type GitHub struct {
	cmd  CmdRunner
	repo string
}

// NewGitHub creates a GitHub tracker. An empty repo lets gh infer it from
// the working directory.
func NewGitHub(cmd CmdRunner, repo string) *GitHub {
	return &GitHub{cmd: cmd, repo: repo}
}

func (g *GitHub) Name() string { return "github" }

var issueURLPattern = regexp.MustCompile(`/issues/(\d+)\s*$`)

// File creates an issue. gh prints the new issue URL; the key is "#<number>".
func (g *GitHub) File(ctx context.Context, t Ticket) (*Ticket, error) {
	args := []string{"issue", "create", "--title", t.Summary, "--body", t.Description}
	if g.repo != "" {
		args = append(args, "--repo", g.repo)
	}
	for _, l := range t.Labels {
		args = append(args, "--label", l)
	}

	out, err := g.cmd.Run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	// gh may print warnings before the URL; the URL is the last line.
	lines := strings.Split(strings.TrimSpace(out), "\n")
	url := strings.TrimSpace(lines[len(lines)-1])
	m := issueURLPattern.FindStringSubmatch(url)
	if m == nil {
		return nil, fmt.Errorf("create issue: unexpected gh output %q", out)
	}

	filed := t
	filed.Key = "#" + m[1]
	filed.URL = url
	return &filed, nil
}
