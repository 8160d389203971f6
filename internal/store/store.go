// Package store persists run history and ticket fingerprints.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Run is one invocation of the driver.
type Run struct {
	ID         string     `json:"id"`
	Root       string     `json:"root"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Files      int        `json:"files"`
	Clean      int        `json:"clean"`
	Fixed      int        `json:"fixed"`
	Exhausted  int        `json:"exhausted"`
	Stalled    int        `json:"stalled"`
	Errored    int        `json:"errored"`
}

// Event records one repair-loop transition or notable occurrence.
type Event struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Path      string    `json:"path"`
	Event     string    `json:"event"`
	Round     int       `json:"round"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckRun records one RunAll over a file's fixtures.
type CheckRun struct {
	RunID      string    `json:"run_id"`
	Path       string    `json:"path"`
	Round      int       `json:"round"`
	Passed     bool      `json:"passed"`
	Total      int       `json:"total"`
	PassedN    int       `json:"passed_n"`
	DurationMs int       `json:"duration_ms"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TicketRecord maps a failure fingerprint to the ticket filed for it.
type TicketRecord struct {
	Fingerprint string    `json:"fingerprint"`
	Tracker     string    `json:"tracker"`
	Key         string    `json:"key"`
	URL         string    `json:"url,omitempty"`
	Path        string    `json:"path"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is implemented by Memory and Postgres.
type Store interface {
	StartRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	LogEvent(ctx context.Context, e Event) error
	RunEvents(ctx context.Context, runID string) ([]Event, error)
	LogCheckRun(ctx context.Context, c CheckRun) error

	// FindTicket returns nil, nil when no ticket matches.
	FindTicket(ctx context.Context, fingerprint string) (*TicketRecord, error)
	SaveTicket(ctx context.Context, t TicketRecord) error
	ListTickets(ctx context.Context, limit int) ([]TicketRecord, error)

	Close()
}

// Event names written by the repair loop.
const (
	EventDetecting      = "detecting"
	EventTicketFiled    = "ticket_filed"
	EventTicketDeduped  = "ticket_deduped"
	EventTicketError    = "ticket_error"
	EventSuggesting     = "suggesting"
	EventSuggestError   = "suggest_error"
	EventVerifying      = "verifying"
	EventDone           = "done"
	EventWriteCompleted = "write_completed"
)

// Fingerprint identifies a failure of specific content. The same failure key
// on the same bytes always yields the same fingerprint.
func Fingerprint(content []byte, failureKey string) string {
	h := sha256.New()
	h.Write(content)
	h.Write([]byte{0})
	h.Write([]byte(failureKey))
	return hex.EncodeToString(h.Sum(nil))
}
