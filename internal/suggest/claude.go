package suggest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RunFunc runs a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) (string, error)

// ExecRun implements RunFunc with os/exec.
func ExecRun(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", name, strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

// Claude completes prompts with a one-shot `claude --print` call.
type Claude struct {
	model string
	run   RunFunc
}

// NewClaude creates a Claude completer. A nil run uses ExecRun.
func NewClaude(model string, run RunFunc) *Claude {
	if run == nil {
		run = ExecRun
	}
	return &Claude{model: model, run: run}
}

// Complete runs `claude --print --model <model> <prompt>`.
func (c *Claude) Complete(ctx context.Context, prompt string) (string, error) {
	args := []string{"--print"}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	args = append(args, prompt)

	out, err := c.run(ctx, "claude", args...)
	if err != nil {
		return "", fmt.Errorf("claude --print: %w", err)
	}
	return out, nil
}
