package tracker

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Log writes tickets to the logger and hands out local keys. Used for dry
// runs and when no tracker is configured.
type Log struct {
	log  *zap.SugaredLogger
	next atomic.Int64
}

// NewLog creates a Log tracker.
func NewLog(log *zap.SugaredLogger) *Log {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Log{log: log}
}

func (l *Log) Name() string { return "log" }

// File logs the ticket and returns it with key LOCAL-<n>.
func (l *Log) File(ctx context.Context, t Ticket) (*Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filed := t
	filed.Key = fmt.Sprintf("LOCAL-%d", l.next.Add(1))
	l.log.Warnw("ticket",
		"key", filed.Key,
		"project", filed.ProjectKey,
		"summary", filed.Summary,
		"description", filed.Description,
	)
	return &filed, nil
}
