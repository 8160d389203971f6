package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used when no database is configured.
// History lives only as long as the process.
type Memory struct {
	mu      sync.Mutex
	runs    map[string]Run
	order   []string
	events  []Event
	checks  []CheckRun
	tickets map[string]TicketRecord
	nextID  int64
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		runs:    make(map[string]Run),
		tickets: make(map[string]TicketRecord),
	}
}

func (m *Memory) StartRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	return nil
}

func (m *Memory) FinishRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("run %s not found", run.ID)
	}
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	m.runs[run.ID] = run
	return nil
}

// ListRuns returns the most recent runs first.
func (m *Memory) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Run
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.runs[m.order[i]])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) LogEvent(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) RunEvents(ctx context.Context, runID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) LogCheckRun(ctx context.Context, c CheckRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.checks = append(m.checks, c)
	return nil
}

// CheckRuns returns every recorded check run for runID.
func (m *Memory) CheckRuns(runID string) []CheckRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CheckRun
	for _, c := range m.checks {
		if c.RunID == runID {
			out = append(out, c)
		}
	}
	return out
}

func (m *Memory) FindTicket(ctx context.Context, fingerprint string) (*TicketRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[fingerprint]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) SaveTicket(ctx context.Context, t TicketRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.tickets[t.Fingerprint] = t
	return nil
}

// ListTickets returns the newest tickets first.
func (m *Memory) ListTickets(ctx context.Context, limit int) ([]TicketRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TicketRecord, 0, len(m.tickets))
	for _, t := range m.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key > out[j].Key
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() {}
