package repair

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/fixloop/internal/checks"
	"github.com/lucasnoah/fixloop/internal/fixtures"
	"github.com/lucasnoah/fixloop/internal/metrics"
	"github.com/lucasnoah/fixloop/internal/pipeline"
	"github.com/lucasnoah/fixloop/internal/store"
	"github.com/lucasnoah/fixloop/internal/suggest"
	"github.com/lucasnoah/fixloop/internal/tracker"
)

// Loop runs the repair state machine for one file at a time.
type Loop struct {
	runner    Runner
	suggester Suggester
	tracker   tracker.Tracker // nil disables ticket filing
	store     store.Store     // nil disables history and dedupe
	opts      Options
	log       *zap.SugaredLogger
	now       func() time.Time
	write     func(path string, data []byte) error
}

// NewLoop creates a Loop.
func NewLoop(
	runner Runner,
	suggester Suggester,
	trk tracker.Tracker,
	st store.Store,
	opts Options,
	log *zap.SugaredLogger,
) *Loop {
	opts.applyDefaults()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loop{
		runner:    runner,
		suggester: suggester,
		tracker:   trk,
		store:     st,
		opts:      opts,
		log:       log,
		now:       time.Now,
		write:     pipeline.WriteAtomic,
	}
}

// SetClock overrides the clock used for the round budget (for testing).
func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
}

// Run takes f from Detecting to Done. Every failure specific to the file is
// reported through the Result's Outcome and Err; the returned error is set
// only when ctx is cancelled.
func (l *Loop) Run(ctx context.Context, f *File, cases []fixtures.TestCase) (*Result, error) {
	start := l.now()
	res := &Result{Path: f.Path, LanguageID: f.LanguageID}
	defer func() {
		res.Duration = l.now().Sub(start)
	}()

	// Detecting
	l.enter(ctx, res, Detecting, 0, "")
	report, err := l.runner.RunAll(ctx, f.Current, f.LanguageID, cases)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		return l.finish(ctx, f, res, Errored, fmt.Errorf("detect: %w", err)), nil
	}
	res.Report = report
	l.recordCheck(ctx, f.Path, 0, report)
	if report.AllPassed {
		l.log.Infow("all cases pass", "file", f.Path, "cases", len(report.Cases))
		return l.finish(ctx, f, res, Clean, nil), nil
	}

	failures := report.Failures()
	f.ErrorText = failures[0].Text
	l.log.Infow("cases failing", "file", f.Path,
		"passed", report.Passed(), "total", len(report.Cases), "groups", len(failures))
	res.Tickets = l.fileTickets(ctx, f, failures)
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	tried := map[string]bool{f.Current: true}
	var previous []string
	deadline := time.Time{}
	if l.opts.RoundBudget > 0 {
		deadline = start.Add(l.opts.RoundBudget)
	}

	for round := 1; ; round++ {
		if round > l.opts.MaxRounds {
			return l.finish(ctx, f, res, Exhausted, fmt.Errorf("%w (%d)", ErrMaxRounds, l.opts.MaxRounds)), nil
		}
		if !deadline.IsZero() && !l.now().Before(deadline) {
			return l.finish(ctx, f, res, Exhausted, fmt.Errorf("%w (%s)", ErrRoundBudget, l.opts.RoundBudget)), nil
		}
		res.Rounds = round

		// Suggesting
		l.enter(ctx, res, Suggesting, round, "")
		var ticket string
		if len(res.Tickets) > 0 {
			ticket = res.Tickets[0]
		}
		suggestion, err := l.suggester.Suggest(ctx, suggest.Request{
			Path:       f.Path,
			LanguageID: f.LanguageID,
			ErrorText:  f.ErrorText,
			Content:    f.Current,
			Mode:       l.opts.PatchMode,
			Round:      round,
			MaxRounds:  l.opts.MaxRounds,
			Ticket:     ticket,
			Previous:   previous,
		})
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			l.event(ctx, f.Path, store.EventSuggestError, round, err.Error())
			return l.finish(ctx, f, res, Errored, fmt.Errorf("suggest (round %d): %w", round, err)), nil
		}

		candidate := Apply(l.opts.PatchMode, f.Current, f.ErrorText, suggestion)
		if candidate == f.Current {
			return l.finish(ctx, f, res, Stalled, ErrNoProgress), nil
		}
		if tried[candidate] {
			return l.finish(ctx, f, res, Stalled, ErrRepeatedCandidate), nil
		}
		tried[candidate] = true

		// Verifying
		l.enter(ctx, res, Verifying, round, "")
		report, err = l.runner.RunAll(ctx, candidate, f.LanguageID, cases)
		if err != nil {
			if ctx.Err() != nil {
				return res, err
			}
			return l.finish(ctx, f, res, Errored, fmt.Errorf("verify (round %d): %w", round, err)), nil
		}
		res.Report = report
		l.recordCheck(ctx, f.Path, round, report)

		if f.Current != f.Original {
			previous = append(previous, f.Current)
		}
		f.Current = candidate
		if report.AllPassed {
			l.log.Infow("candidate passes", "file", f.Path, "round", round)
			return l.finish(ctx, f, res, Fixed, nil), nil
		}

		failures = report.Failures()
		f.ErrorText = failures[0].Text
		l.log.Infow("candidate still failing", "file", f.Path, "round", round,
			"passed", report.Passed(), "total", len(report.Cases))
	}
}

// finish enters Done, writes the file when it was fixed and records the
// outcome.
func (l *Loop) finish(ctx context.Context, f *File, res *Result, outcome Outcome, err error) *Result {
	res.Outcome = outcome
	res.Err = err
	l.enter(ctx, res, Done, res.Rounds, string(outcome))

	if outcome == Fixed {
		if l.opts.DryRun {
			l.log.Infow("dry run, not writing", "file", f.Path)
		} else if werr := l.write(f.Path, []byte(f.Current)); werr != nil {
			res.Outcome = Errored
			res.Err = fmt.Errorf("write %s: %w", f.Path, werr)
		} else {
			res.Written = true
			l.event(ctx, f.Path, store.EventWriteCompleted, res.Rounds, "")
		}
	}

	metrics.RepairOutcomesTotal.WithLabelValues(string(res.Outcome)).Inc()
	metrics.RepairRounds.Observe(float64(res.Rounds))

	fields := []any{"file", f.Path, "outcome", res.Outcome, "rounds", res.Rounds}
	if res.Err != nil {
		fields = append(fields, "error", res.Err)
	}
	if res.Outcome.Success() {
		l.log.Infow("repair finished", fields...)
	} else {
		l.log.Warnw("repair finished", fields...)
	}
	return res
}

// fileTickets files one ticket per failure group and returns the keys.
// Tracker errors are logged and do not stop the loop.
func (l *Loop) fileTickets(ctx context.Context, f *File, failures []checks.Failure) []string {
	if l.tracker == nil {
		return nil
	}
	name := l.tracker.Name()
	dedupe := l.opts.Dedupe && l.store != nil

	var keys []string
	for _, fail := range failures {
		fp := store.Fingerprint([]byte(f.Current), fail.Key)
		if dedupe {
			rec, err := l.store.FindTicket(ctx, fp)
			if err != nil {
				l.log.Warnw("ticket lookup failed", "file", f.Path, "error", err)
			} else if rec != nil {
				keys = append(keys, rec.Key)
				metrics.TicketsTotal.WithLabelValues(name, "deduped").Inc()
				l.event(ctx, f.Path, store.EventTicketDeduped, 0, rec.Key)
				l.log.Infow("ticket already filed", "file", f.Path, "key", rec.Key)
				continue
			}
		}

		filed, err := l.tracker.File(ctx, tracker.Ticket{
			ProjectKey:  l.opts.ProjectKey,
			Summary:     tracker.Summary(l.opts.SummaryPrefix, f.Path),
			Description: tracker.Describe(f.Path, f.LanguageID, fail.Text),
			IssueType:   l.opts.IssueType,
			Labels:      l.opts.Labels,
		})
		if err != nil {
			metrics.TicketsTotal.WithLabelValues(name, "error").Inc()
			l.event(ctx, f.Path, store.EventTicketError, 0, err.Error())
			l.log.Warnw("file ticket failed", "file", f.Path, "tracker", name, "error", err)
			if ctx.Err() != nil {
				return keys
			}
			continue
		}

		keys = append(keys, filed.Key)
		metrics.TicketsTotal.WithLabelValues(name, "filed").Inc()
		l.event(ctx, f.Path, store.EventTicketFiled, 0, filed.Key)
		l.log.Infow("ticket filed", "file", f.Path, "key", filed.Key, "cases", fail.Cases)

		if dedupe {
			if err := l.store.SaveTicket(ctx, store.TicketRecord{
				Fingerprint: fp,
				Tracker:     name,
				Key:         filed.Key,
				URL:         filed.URL,
				Path:        f.Path,
			}); err != nil {
				l.log.Warnw("save ticket fingerprint failed", "key", filed.Key, "error", err)
			}
		}
	}
	return keys
}

// stateEvents names the history event recorded on entering each state.
var stateEvents = map[State]string{
	Detecting:  store.EventDetecting,
	Suggesting: store.EventSuggesting,
	Verifying:  store.EventVerifying,
	Done:       store.EventDone,
}

func (l *Loop) enter(ctx context.Context, res *Result, s State, round int, detail string) {
	res.Trace = append(res.Trace, s)
	l.log.Debugw("state", "file", res.Path, "state", s, "round", round)
	l.event(ctx, res.Path, stateEvents[s], round, detail)
}

func (l *Loop) event(ctx context.Context, path, name string, round int, detail string) {
	if l.store == nil {
		return
	}
	if err := l.store.LogEvent(ctx, store.Event{
		RunID:  l.opts.RunID,
		Path:   path,
		Event:  name,
		Round:  round,
		Detail: detail,
	}); err != nil {
		l.log.Warnw("record event failed", "event", name, "error", err)
	}
}

func (l *Loop) recordCheck(ctx context.Context, path string, round int, r *checks.Report) {
	if l.store == nil {
		return
	}
	summary := ""
	if !r.AllPassed {
		if fs := r.Failures(); len(fs) > 0 {
			summary = checks.Truncate(fs[0].Text, 500)
		}
	}
	if err := l.store.LogCheckRun(ctx, store.CheckRun{
		RunID:      l.opts.RunID,
		Path:       path,
		Round:      round,
		Passed:     r.AllPassed,
		Total:      len(r.Cases),
		PassedN:    r.Passed(),
		DurationMs: r.DurationMs,
		Summary:    summary,
	}); err != nil {
		l.log.Warnw("record check run failed", "file", path, "error", err)
	}
}
