package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJudge serves the submission endpoints. Each token walks through
// statuses in order; the last one repeats.
type fakeJudge struct {
	mu        sync.Mutex
	statuses  []map[string]any
	polls     int
	submitted []submissionRequest
	headers   []http.Header
}

func (f *fakeJudge) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.headers = append(f.headers, r.Header.Clone())
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/submissions":
			var req submissionRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			f.submitted = append(f.submitted, req)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/submissions/"):
			idx := f.polls
			if idx >= len(f.statuses) {
				idx = len(f.statuses) - 1
			}
			f.polls++
			json.NewEncoder(w).Encode(f.statuses[idx])
		case r.Method == http.MethodGet && r.URL.Path == "/languages":
			json.NewEncoder(w).Encode([]Language{
				{ID: 71, Name: "Python (3.8.1)"},
				{ID: 63, Name: "JavaScript (Node.js 12.14.0)"},
			})
		default:
			http.NotFound(w, r)
		}
	}
}

func status(id int, extra map[string]any) map[string]any {
	m := map[string]any{"status": map[string]any{"id": id, "description": "desc"}}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func newTestClient(t *testing.T, f *fakeJudge, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL + "/"
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
		opts.PollMaxInterval = 5 * time.Millisecond
	}
	return New(opts, nil)
}

func TestExecute_PollsUntilAccepted(t *testing.T) {
	f := &fakeJudge{statuses: []map[string]any{
		status(1, nil),
		status(2, nil),
		status(3, map[string]any{"stdout": "4\n"}),
	}}
	c := newTestClient(t, f, Options{})

	out, err := c.Execute(context.Background(), "print(2+2)", 71, "")
	require.NoError(t, err)
	assert.Equal(t, "4", out)
	assert.Equal(t, 3, f.polls)
	require.Len(t, f.submitted, 1)
	assert.Equal(t, "print(2+2)", f.submitted[0].SourceCode)
	assert.Equal(t, 71, f.submitted[0].LanguageID)
}

func TestExecute_NullStdout(t *testing.T) {
	f := &fakeJudge{statuses: []map[string]any{status(3, map[string]any{"stdout": nil})}}
	c := newTestClient(t, f, Options{})

	out, err := c.Execute(context.Background(), "pass", 71, "")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestExecute_TerminalFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   map[string]any
		wantKind FailureKind
		wantMsg  string
	}{
		{
			name:     "compile error",
			status:   status(6, map[string]any{"compile_output": "SyntaxError: invalid syntax"}),
			wantKind: CompileError,
			wantMsg:  "SyntaxError",
		},
		{
			name:     "runtime error",
			status:   status(11, map[string]any{"stderr": "ZeroDivisionError"}),
			wantKind: RuntimeError,
			wantMsg:  "ZeroDivisionError",
		},
		{
			name:     "time limit",
			status:   status(5, nil),
			wantKind: TimeLimit,
		},
		{
			name:     "internal error",
			status:   status(13, map[string]any{"message": "box crashed"}),
			wantKind: InternalError,
			wantMsg:  "box crashed",
		},
		{
			name:     "unknown status id",
			status:   status(99, nil),
			wantKind: InternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeJudge{statuses: []map[string]any{tt.status}}
			c := newTestClient(t, f, Options{})

			_, err := c.Execute(context.Background(), "x", 71, "")
			var sf *SandboxFailure
			require.True(t, errors.As(err, &sf), "want *SandboxFailure, got %T", err)
			assert.Equal(t, tt.wantKind, sf.Kind)
			assert.Equal(t, "tok-1", sf.Token)
			assert.Contains(t, sf.Message, tt.wantMsg)
		})
	}
}

func TestExecute_PollTimeout(t *testing.T) {
	f := &fakeJudge{statuses: []map[string]any{status(2, nil)}}
	c := newTestClient(t, f, Options{
		PollInterval:    time.Millisecond,
		PollMaxInterval: 2 * time.Millisecond,
		PollTimeout:     30 * time.Millisecond,
	})

	_, err := c.Execute(context.Background(), "while True: pass", 71, "")
	var sf *SandboxFailure
	require.True(t, errors.As(err, &sf))
	assert.Equal(t, Timeout, sf.Kind)
	assert.Greater(t, f.polls, 1)
}

func TestExecute_ContextCancelled(t *testing.T) {
	f := &fakeJudge{statuses: []map[string]any{status(1, nil)}}
	c := newTestClient(t, f, Options{
		PollInterval:    5 * time.Millisecond,
		PollMaxInterval: 5 * time.Millisecond,
		PollTimeout:     time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Execute(ctx, "x", 71, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_HTTPErrorIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"queue full"}`))
	}))
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL}, nil)

	_, err := c.Execute(context.Background(), "x", 71, "")
	var nf *NetworkFailure
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, http.StatusServiceUnavailable, nf.StatusCode)
	assert.Contains(t, nf.Error(), "queue full")
}

func TestExecute_UnreachableIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url, HTTPTimeout: time.Second}, nil)
	_, err := c.Execute(context.Background(), "x", 71, "")
	var nf *NetworkFailure
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 0, nf.StatusCode)
}

func TestAuthHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"default authorization", "", "Token secret"},
		{"self-hosted header", "X-Auth-Token", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeJudge{statuses: []map[string]any{status(3, nil)}}
			c := newTestClient(t, f, Options{Token: "secret", AuthHeader: tt.header})

			_, err := c.Execute(context.Background(), "x", 71, "")
			require.NoError(t, err)
			name := tt.header
			if name == "" {
				name = "Authorization"
			}
			for _, h := range f.headers {
				assert.Equal(t, tt.want, h.Get(name))
			}
		})
	}
}

func TestLanguages(t *testing.T) {
	f := &fakeJudge{}
	c := newTestClient(t, f, Options{})

	langs, err := c.Languages(context.Background())
	require.NoError(t, err)
	require.Len(t, langs, 2)
	assert.Equal(t, 71, langs[0].ID)
	assert.Equal(t, "Python (3.8.1)", langs[0].Name)
}

func TestStatusFromID(t *testing.T) {
	cases := map[int]Status{
		1:  StatusPending,
		2:  StatusPending,
		3:  StatusAccepted,
		5:  StatusTimeLimit,
		6:  StatusCompileError,
		7:  StatusRuntimeError,
		12: StatusRuntimeError,
		13: StatusInternalError,
		14: StatusInternalError,
		0:  StatusInternalError,
	}
	for id, want := range cases {
		assert.Equal(t, want, statusFromID(id), "status id %d", id)
	}
}
