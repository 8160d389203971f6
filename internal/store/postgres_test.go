package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns a migrated store.
// Tests are skipped when no container runtime is available.
func setupPostgres(t *testing.T) *Postgres {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration tests in short mode")
	}

	// Run panics when no container runtime is reachable.
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("fixloop_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, Config{DSN: connStr, MigrateOnStart: true}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestPostgres_MigrateIsIdempotent(t *testing.T) {
	s := setupPostgres(t)

	applied, err := s.Migrate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied, "second migrate should apply nothing")
}

func TestPostgres_Runs(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.StartRun(ctx, Run{ID: "r1", Root: "/src", StartedAt: start}))
	require.NoError(t, s.StartRun(ctx, Run{ID: "r2", Root: "/src", StartedAt: start.Add(time.Second)}))
	assert.Error(t, s.StartRun(ctx, Run{ID: "r1", Root: "/src", StartedAt: start}))

	require.NoError(t, s.FinishRun(ctx, Run{ID: "r1", Files: 4, Clean: 1, Fixed: 2, Stalled: 1}))
	assert.Error(t, s.FinishRun(ctx, Run{ID: "nope"}))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, 2, runs[1].Fixed)
	assert.NotNil(t, runs[1].FinishedAt)
	assert.Nil(t, runs[0].FinishedAt)
}

func TestPostgres_EventsAndChecks(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.LogEvent(ctx, Event{RunID: "r1", Path: "a.py", Event: EventDetecting}))
	require.NoError(t, s.LogEvent(ctx, Event{RunID: "r1", Path: "a.py", Event: EventSuggesting, Round: 1}))
	require.NoError(t, s.LogEvent(ctx, Event{RunID: "r2", Path: "b.py", Event: EventDone}))
	require.NoError(t, s.LogCheckRun(ctx, CheckRun{RunID: "r1", Path: "a.py", Total: 2, PassedN: 1}))

	events, err := s.RunEvents(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventDetecting, events[0].Event)
	assert.Equal(t, 1, events[1].Round)
}

func TestPostgres_Tickets(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	fp := Fingerprint([]byte("content"), "runtime:boom")
	got, err := s.FindTicket(ctx, fp)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.SaveTicket(ctx, TicketRecord{Fingerprint: fp, Tracker: "jira", Key: "FIX-7", Path: "a.py"}))
	require.NoError(t, s.SaveTicket(ctx, TicketRecord{Fingerprint: fp, Tracker: "jira", Key: "FIX-8", Path: "a.py"}))

	got, err = s.FindTicket(ctx, fp)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "FIX-8", got.Key)

	list, err := s.ListTickets(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
