package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres is a PostgreSQL-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

var _ Store = (*Postgres)(nil)

// New connects to PostgreSQL and verifies the connection. When
// MigrateOnStart is set, pending migrations are applied before returning.
func New(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*Postgres, error) {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Postgres{pool: pool, log: log}
	if cfg.MigrateOnStart {
		if _, err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return s, nil
}

// Close releases the pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) StartRun(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (id, root, started_at, files)
		VALUES ($1, $2, $3, $4)`,
		run.ID, run.Root, run.StartedAt, run.Files,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Postgres) FinishRun(ctx context.Context, run Run) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE runs
		SET finished_at = COALESCE($2, now()), files = $3, clean = $4, fixed = $5,
		    exhausted = $6, stalled = $7, errored = $8
		WHERE id = $1`,
		run.ID, run.FinishedAt, run.Files, run.Clean, run.Fixed,
		run.Exhausted, run.Stalled, run.Errored,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

func (s *Postgres) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, root, started_at, finished_at, files, clean, fixed, exhausted, stalled, errored
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Root, &r.StartedAt, &r.FinishedAt, &r.Files,
			&r.Clean, &r.Fixed, &r.Exhausted, &r.Stalled, &r.Errored); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) LogEvent(ctx context.Context, e Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO repair_events (run_id, path, event, round, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		e.RunID, e.Path, e.Event, e.Round, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.Event, err)
	}
	return nil
}

func (s *Postgres) RunEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, path, event, round, detail, created_at
		FROM repair_events
		WHERE run_id = $1
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RunID, &e.Path, &e.Event, &e.Round, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) LogCheckRun(ctx context.Context, c CheckRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO check_runs (run_id, path, round, passed, total, passed_n, duration_ms, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.RunID, c.Path, c.Round, c.Passed, c.Total, c.PassedN, c.DurationMs, c.Summary,
	)
	if err != nil {
		return fmt.Errorf("insert check run: %w", err)
	}
	return nil
}

func (s *Postgres) FindTicket(ctx context.Context, fingerprint string) (*TicketRecord, error) {
	var t TicketRecord
	err := s.pool.QueryRow(ctx, `
		SELECT fingerprint, tracker, key, url, path, created_at
		FROM tickets
		WHERE fingerprint = $1`, fingerprint,
	).Scan(&t.Fingerprint, &t.Tracker, &t.Key, &t.URL, &t.Path, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ticket: %w", err)
	}
	return &t, nil
}

func (s *Postgres) SaveTicket(ctx context.Context, t TicketRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tickets (fingerprint, tracker, key, url, path)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO UPDATE
		SET tracker = EXCLUDED.tracker, key = EXCLUDED.key, url = EXCLUDED.url`,
		t.Fingerprint, t.Tracker, t.Key, t.URL, t.Path,
	)
	if err != nil {
		return fmt.Errorf("upsert ticket %s: %w", t.Key, err)
	}
	return nil
}

func (s *Postgres) ListTickets(ctx context.Context, limit int) ([]TicketRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT fingerprint, tracker, key, url, path, created_at
		FROM tickets
		ORDER BY created_at DESC, key DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var out []TicketRecord
	for rows.Next() {
		var t TicketRecord
		if err := rows.Scan(&t.Fingerprint, &t.Tracker, &t.Key, &t.URL, &t.Path, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
