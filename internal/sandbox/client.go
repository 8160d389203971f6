// Package sandbox talks to a Judge0-compatible remote execution service.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lucasnoah/fixloop/internal/metrics"
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	Token             string
	AuthHeader        string
	RequestsPerSecond float64
	PollInterval      time.Duration
	PollMaxInterval   time.Duration
	PollTimeout       time.Duration
	HTTPTimeout       time.Duration
}

// Client calls the sandbox REST API. It holds no state between calls beyond
// the HTTP client and the request limiter.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// New creates a Client. Zero durations fall back to the same defaults the
// config loader applies.
func New(opts Options, log *zap.SugaredLogger) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.AuthHeader == "" {
		opts.AuthHeader = "Authorization"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.PollMaxInterval < opts.PollInterval {
		opts.PollMaxInterval = opts.PollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 2 * time.Minute
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: opts.HTTPTimeout},
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// Languages fetches the language catalog.
func (c *Client) Languages(ctx context.Context) ([]Language, error) {
	var langs []Language
	if err := c.do(ctx, "languages", http.MethodGet, "/languages", nil, &langs); err != nil {
		return nil, err
	}
	return langs, nil
}

// Submit queues source for execution and returns the submission token.
func (c *Client) Submit(ctx context.Context, source string, languageID int, stdin string) (string, error) {
	req := submissionRequest{SourceCode: source, LanguageID: languageID, Stdin: stdin}
	var tok submissionToken
	if err := c.do(ctx, "submissions", http.MethodPost, "/submissions?base64_encoded=false&wait=false", req, &tok); err != nil {
		return "", err
	}
	if tok.Token == "" {
		return "", &NetworkFailure{Op: "submit", Err: errors.New("response carried no token")}
	}
	return tok.Token, nil
}

// Status fetches the current state of a submission.
func (c *Client) Status(ctx context.Context, token string) (*Result, error) {
	path := "/submissions/" + url.PathEscape(token) +
		"?base64_encoded=false&fields=stdout,stderr,compile_output,message,status"
	var st submissionStatus
	if err := c.do(ctx, "status", http.MethodGet, path, nil, &st); err != nil {
		return nil, err
	}
	return &Result{
		Token:         token,
		Stdout:        deref(st.Stdout),
		Stderr:        deref(st.Stderr),
		CompileOutput: deref(st.CompileOutput),
		Message:       deref(st.Message),
		Status:        statusFromID(st.Status.ID),
		StatusID:      st.Status.ID,
		Description:   st.Status.Description,
	}, nil
}

// Wait polls a submission with exponential backoff until it reaches a
// terminal status or the poll timeout expires.
func (c *Client) Wait(ctx context.Context, token string) (*Result, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.PollInterval
	b.MaxInterval = c.opts.PollMaxInterval
	b.MaxElapsedTime = c.opts.PollTimeout
	b.RandomizationFactor = 0.1
	b.Reset()

	errPending := errors.New("submission pending")
	var last *Result
	op := func() error {
		res, err := c.Status(ctx, token)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = res
		if !res.Done() {
			return errPending
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, errPending):
		return nil, &SandboxFailure{
			Kind:    Timeout,
			Message: fmt.Sprintf("submission not finished after %s", c.opts.PollTimeout),
			Token:   token,
		}
	default:
		return nil, err
	}
}

// Execute runs source with stdin and returns its trimmed stdout. Any
// non-accepted terminal status is returned as a *SandboxFailure.
func (c *Client) Execute(ctx context.Context, source string, languageID int, stdin string) (string, error) {
	start := time.Now()
	token, err := c.Submit(ctx, source, languageID, stdin)
	if err != nil {
		return "", err
	}
	c.log.Debugw("submission queued", "token", token, "language_id", languageID)

	res, err := c.Wait(ctx, token)
	if err != nil {
		var sf *SandboxFailure
		if errors.As(err, &sf) {
			metrics.SubmissionsTotal.WithLabelValues(string(sf.Kind)).Inc()
		}
		return "", err
	}
	metrics.SubmissionsTotal.WithLabelValues(string(res.Status)).Inc()
	metrics.SubmissionDuration.Observe(time.Since(start).Seconds())

	if res.Status != StatusAccepted {
		return "", failureFor(res)
	}
	return strings.TrimRight(res.Stdout, " \t\r\n"), nil
}

// do sends one rate-limited JSON request. Transport errors and non-2xx
// responses come back as *NetworkFailure.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sandbox %s: %w", op, err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.SandboxRequestsTotal.WithLabelValues(op, metrics.StatusClass(0)).Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NetworkFailure{Op: op, Err: err}
	}
	defer resp.Body.Close()
	metrics.SandboxRequestsTotal.WithLabelValues(op, metrics.StatusClass(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkFailure{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NetworkFailure{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &NetworkFailure{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.opts.Token == "" {
		return
	}
	if strings.EqualFold(c.opts.AuthHeader, "Authorization") {
		req.Header.Set("Authorization", "Token "+c.opts.Token)
		return
	}
	req.Header.Set(c.opts.AuthHeader, c.opts.Token)
}
