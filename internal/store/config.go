package store

import "time"

// Config holds PostgreSQL connection settings.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxConns is the pool size (default: 4). A run is single-threaded, so
	// the pool stays small.
	MaxConns int32

	// MinConns is the number of idle connections kept open (default: 1).
	MinConns int32

	// MaxConnLifetime is how long a connection lives before it is replaced
	// (default: 5 minutes).
	MaxConnLifetime time.Duration

	// MigrateOnStart applies pending migrations in New.
	MigrateOnStart bool
}

func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 4
	}
	if c.MinConns == 0 {
		c.MinConns = 1
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 5 * time.Minute
	}
}
