package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPError is a non-2xx response from a tracker API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("tracker returned HTTP %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// JiraOptions configures a Jira tracker.
type JiraOptions struct {
	BaseURL  string
	Username string
	APIToken string
	Timeout  time.Duration
}

// Jira files tickets through the Jira REST API v2.
type Jira struct {
	opts JiraOptions
	http *http.Client
}

// NewJira creates a Jira tracker.
func NewJira(opts JiraOptions) *Jira {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Jira{opts: opts, http: &http.Client{Timeout: opts.Timeout}}
}

func (j *Jira) Name() string { return "jira" }

type jiraFields struct {
	Project     jiraKey  `json:"project"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	IssueType   jiraName `json:"issuetype"`
	Labels      []string `json:"labels,omitempty"`
}

type jiraKey struct {
	Key string `json:"key"`
}

type jiraName struct {
	Name string `json:"name"`
}

type jiraCreated struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// File creates a Jira issue and returns the ticket with its key and browse URL.
func (j *Jira) File(ctx context.Context, t Ticket) (*Ticket, error) {
	issueType := t.IssueType
	if issueType == "" {
		issueType = "Bug"
	}
	payload := struct {
		Fields jiraFields `json:"fields"`
	}{Fields: jiraFields{
		Project:     jiraKey{Key: t.ProjectKey},
		Summary:     t.Summary,
		Description: t.Description,
		IssueType:   jiraName{Name: issueType},
		Labels:      t.Labels,
	}}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal jira issue: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.opts.BaseURL+"/rest/api/2/issue", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create jira request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(j.opts.Username, j.opts.APIToken)

	resp, err := j.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read jira response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var created jiraCreated
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("decode jira response: %w", err)
	}
	if created.Key == "" {
		return nil, fmt.Errorf("jira response carried no issue key")
	}

	filed := t
	filed.IssueType = issueType
	filed.Key = created.Key
	filed.URL = j.opts.BaseURL + "/browse/" + created.Key
	return &filed, nil
}
