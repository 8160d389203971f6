// Package suggest asks a text-completion service for a fix.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/fixloop/internal/config"
	"github.com/lucasnoah/fixloop/internal/metrics"
	"github.com/lucasnoah/fixloop/internal/prompt"
)

// ErrEmptySuggestion is returned when the service replies with nothing usable.
var ErrEmptySuggestion = errors.New("empty suggestion")

// Completer sends one prompt and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Request carries what the prompt is built from.
type Request struct {
	Path       string
	LanguageID int
	ErrorText  string
	Content    string
	Mode       string // config.PatchReplaceFile or config.PatchSubstitute
	Round      int
	MaxRounds  int
	Ticket     string
	Previous   []string
}

// Options configures a Client.
type Options struct {
	Provider string
	Template string // override path; empty uses the built-in for the mode
	Workdir  string
	Timeout  time.Duration
}

// Client renders the prompt, calls the completer and cleans up the reply.
type Client struct {
	completer Completer
	opts      Options
	log       *zap.SugaredLogger
}

// NewClient wraps a Completer.
func NewClient(c Completer, opts Options, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{completer: c, opts: opts, log: log}
}

// New builds a Client for the provider selected in cfg.
func New(cfg config.Suggest, workdir string, log *zap.SugaredLogger) (*Client, error) {
	var c Completer
	switch cfg.Provider {
	case config.ProviderOpenAI:
		c = NewOpenAI(OpenAIOptions{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
	case config.ProviderClaude:
		c = NewClaude(cfg.Model, nil)
	default:
		return nil, fmt.Errorf("unknown suggestion provider %q", cfg.Provider)
	}
	return NewClient(c, Options{
		Provider: cfg.Provider,
		Template: cfg.Template,
		Workdir:  workdir,
		Timeout:  cfg.TimeoutDur,
	}, log), nil
}

// Suggest returns a fix for req. In replace_file mode that is the complete
// candidate file; in substitute mode it is the replacement for the error text.
func (c *Client) Suggest(ctx context.Context, req Request) (string, error) {
	text, err := c.Prompt(req)
	if err != nil {
		return "", err
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := c.completer.Complete(ctx, text)
	metrics.SuggestionLatency.WithLabelValues(c.opts.Provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SuggestionsTotal.WithLabelValues(c.opts.Provider, "error").Inc()
		return "", fmt.Errorf("request suggestion: %w", err)
	}

	out := Extract(reply, req.Mode)
	if out == "" {
		metrics.SuggestionsTotal.WithLabelValues(c.opts.Provider, "empty").Inc()
		return "", ErrEmptySuggestion
	}
	metrics.SuggestionsTotal.WithLabelValues(c.opts.Provider, "ok").Inc()
	c.log.Debugw("suggestion received", "file", req.Path, "round", req.Round, "bytes", len(out))
	return out, nil
}

// Prompt renders the prompt text for req.
func (c *Client) Prompt(req Request) (string, error) {
	name := prompt.FixFile
	if req.Mode == config.PatchSubstitute {
		name = prompt.FixSubstitute
	}
	tmpl, err := prompt.LoadTemplate(name, c.opts.Template, c.opts.Workdir)
	if err != nil {
		return "", fmt.Errorf("load prompt: %w", err)
	}
	text, err := prompt.Render(tmpl, prompt.Vars{
		"path":        req.Path,
		"language_id": strconv.Itoa(req.LanguageID),
		"error":       req.ErrorText,
		"content":     req.Content,
		"round":       strconv.Itoa(req.Round),
		"max_rounds":  strconv.Itoa(req.MaxRounds),
		"ticket":      req.Ticket,
		"previous":    strings.Join(req.Previous, "\n---\n"),
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return text, nil
}
