package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lucasnoah/fixloop/internal/config"
)

type mockCmd struct {
	calls   [][]string
	results []mockResult
	idx     int
}

type mockResult struct {
	output string
	err    error
}

func (m *mockCmd) Run(ctx context.Context, args ...string) (string, error) {
	m.calls = append(m.calls, args)
	if m.idx >= len(m.results) {
		return "", nil
	}
	r := m.results[m.idx]
	m.idx++
	return r.output, r.err
}

func TestDescribe(t *testing.T) {
	got := Describe("src/app.py", 71, "Test case 1 failed:\nInput: 1\n")
	want := "Error in file: src/app.py\nLanguage ID: 71\n\nTest case 1 failed:\nInput: 1\n"
	if got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}

func TestSummary(t *testing.T) {
	if got := Summary("", "/work/src/app.py"); got != "Error in code file: app.py" {
		t.Errorf("Summary() = %q", got)
	}
	if got := Summary("Autofix", "a/b.py"); got != "Autofix: b.py" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestJiraFile(t *testing.T) {
	var gotBody map[string]map[string]any
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotUser, gotPass, _ = r.BasicAuth()
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"10001","key":"FIX-7","self":"x"}`))
	}))
	defer srv.Close()

	j := NewJira(JiraOptions{BaseURL: srv.URL + "/", Username: "bot", APIToken: "tok"})
	filed, err := j.File(context.Background(), Ticket{
		ProjectKey:  "FIX",
		Summary:     "Error in code file: app.py",
		Description: "boom",
	})
	if err != nil {
		t.Fatalf("File() error: %v", err)
	}
	if filed.Key != "FIX-7" {
		t.Errorf("Key = %q, want FIX-7", filed.Key)
	}
	if filed.URL != srv.URL+"/browse/FIX-7" {
		t.Errorf("URL = %q", filed.URL)
	}
	if gotUser != "bot" || gotPass != "tok" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}

	fields := gotBody["fields"]
	if fields["summary"] != "Error in code file: app.py" {
		t.Errorf("summary = %v", fields["summary"])
	}
	if p, _ := fields["project"].(map[string]any); p["key"] != "FIX" {
		t.Errorf("project = %v", fields["project"])
	}
	if it, _ := fields["issuetype"].(map[string]any); it["name"] != "Bug" {
		t.Errorf("issuetype = %v, want Bug default", fields["issuetype"])
	}
}

func TestJiraFileHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":{"project":"project is required"}}`))
	}))
	defer srv.Close()

	_, err := NewJira(JiraOptions{BaseURL: srv.URL}).File(context.Background(), Ticket{Summary: "s"})
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if he.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d", he.StatusCode)
	}
	if !strings.Contains(he.Error(), "project is required") {
		t.Errorf("error = %q", he.Error())
	}
}

func TestGitHubFile(t *testing.T) {
	mock := &mockCmd{results: []mockResult{
		{output: "Creating issue in acme/widgets\n\nhttps://github.com/acme/widgets/issues/42"},
	}}
	gh := NewGitHub(mock, "acme/widgets")

	filed, err := gh.File(context.Background(), Ticket{
		Summary:     "Error in code file: app.py",
		Description: "body text",
		Labels:      []string{"autofix", "bug"},
	})
	if err != nil {
		t.Fatalf("File() error: %v", err)
	}
	if filed.Key != "#42" {
		t.Errorf("Key = %q, want #42", filed.Key)
	}
	if filed.URL != "https://github.com/acme/widgets/issues/42" {
		t.Errorf("URL = %q", filed.URL)
	}

	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.calls))
	}
	args := strings.Join(mock.calls[0], " ")
	for _, want := range []string{
		"issue create",
		"--title Error in code file: app.py",
		"--body body text",
		"--repo acme/widgets",
		"--label autofix",
		"--label bug",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestGitHubFileNoRepo(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{output: "https://github.com/o/r/issues/1"}}}
	if _, err := NewGitHub(mock, "").File(context.Background(), Ticket{Summary: "s"}); err != nil {
		t.Fatal(err)
	}
	for _, a := range mock.calls[0] {
		if a == "--repo" {
			t.Error("--repo should be omitted when no repo is configured")
		}
	}
}

func TestGitHubFileErrors(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{err: errors.New("gh: not authenticated")}}}
	if _, err := NewGitHub(mock, "").File(context.Background(), Ticket{}); err == nil {
		t.Error("expected error when gh fails")
	}

	mock = &mockCmd{results: []mockResult{{output: "something unexpected"}}}
	if _, err := NewGitHub(mock, "").File(context.Background(), Ticket{}); err == nil {
		t.Error("expected error for unparseable gh output")
	}
}

func TestLogTrackerKeys(t *testing.T) {
	l := NewLog(nil)
	first, err := l.File(context.Background(), Ticket{Summary: "a"})
	if err != nil {
		t.Fatal(err)
	}
	second, _ := l.File(context.Background(), Ticket{Summary: "b"})
	if first.Key != "LOCAL-1" || second.Key != "LOCAL-2" {
		t.Errorf("keys = %q, %q", first.Key, second.Key)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{config.TrackerJira, "jira"},
		{config.TrackerGitHub, "github"},
		{config.TrackerLog, "log"},
	}
	for _, tt := range tests {
		tr, err := New(config.Tracker{Kind: tt.kind}, &mockCmd{}, nil)
		if err != nil {
			t.Fatalf("New(%q) error: %v", tt.kind, err)
		}
		if tr.Name() != tt.want {
			t.Errorf("New(%q).Name() = %q", tt.kind, tr.Name())
		}
	}

	if _, err := New(config.Tracker{Kind: "trello"}, nil, nil); err == nil {
		t.Error("expected error for unknown kind")
	}
}
