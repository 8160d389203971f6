package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/lucasnoah/fixloop/internal/config"
)

// Open returns a Postgres store when a DSN is configured and an in-memory
// store otherwise.
func Open(ctx context.Context, cfg config.Database, log *zap.SugaredLogger) (Store, error) {
	if cfg.DSN == "" {
		return NewMemory(), nil
	}
	pg, err := New(ctx, Config{DSN: cfg.DSN, MigrateOnStart: cfg.MigrateOnStart}, log)
	if err != nil {
		return nil, err
	}
	return pg, nil
}
