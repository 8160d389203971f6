// Package driver walks a project tree and runs the repair loop on each
// selected file.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lucasnoah/fixloop/internal/config"
	"github.com/lucasnoah/fixloop/internal/fixtures"
	"github.com/lucasnoah/fixloop/internal/pipeline"
	"github.com/lucasnoah/fixloop/internal/repair"
	"github.com/lucasnoah/fixloop/internal/sandbox"
	"github.com/lucasnoah/fixloop/internal/store"
)

// ErrUnknownLanguage is a file-level error for files no language matches.
var ErrUnknownLanguage = errors.New("unknown language")

// Repairer runs the repair loop for one file. *repair.Loop satisfies it.
type Repairer interface {
	Run(ctx context.Context, f *repair.File, cases []fixtures.TestCase) (*repair.Result, error)
}

// Catalog lists the sandbox's languages. *sandbox.Client satisfies it.
type Catalog interface {
	Languages(ctx context.Context) ([]sandbox.Language, error)
}

// Options configures a Driver.
type Options struct {
	RunID      string
	Root       string
	Extensions []string
	Exclude    []string
	Fixtures   string
	Languages  map[string]int
	DryRun     bool
}

// OptionsFromConfig maps the walk and fixture settings of cfg.
func OptionsFromConfig(cfg *config.Config, runID string) Options {
	return Options{
		RunID:      runID,
		Root:       cfg.Root,
		Extensions: cfg.Extensions,
		Exclude:    cfg.Exclude,
		Fixtures:   cfg.Fixtures,
		Languages:  cfg.Languages,
		DryRun:     cfg.Repair.DryRun,
	}
}

// Driver processes files one at a time, to completion, in walk order.
type Driver struct {
	repairer Repairer
	catalog  Catalog
	reports  *pipeline.Store // nil skips the JSON report
	history  store.Store     // nil skips run history
	opts     Options
	log      *zap.SugaredLogger

	languages []sandbox.Language
	fetched   bool

	shared    []fixtures.TestCase
	sharedErr error
}

// New creates a Driver.
func New(repairer Repairer, catalog Catalog, reports *pipeline.Store, history store.Store, opts Options, log *zap.SugaredLogger) *Driver {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Driver{
		repairer: repairer,
		catalog:  catalog,
		reports:  reports,
		history:  history,
		opts:     opts,
		log:      log,
	}
}

// RunID returns the id recorded for this run.
func (d *Driver) RunID() string {
	return d.opts.RunID
}

// Run walks the root and repairs every selected file. One file's failure
// becomes that file's errored outcome and the batch continues. A cancelled
// ctx stops the batch; the partial report is still saved and returned along
// with the context error.
func (d *Driver) Run(ctx context.Context) (*pipeline.RunReport, error) {
	started := time.Now().UTC()
	report := &pipeline.RunReport{
		ID:        d.opts.RunID,
		Root:      d.opts.Root,
		DryRun:    d.opts.DryRun,
		StartedAt: started.Format(time.RFC3339),
		Files:     []pipeline.FileReport{},
	}

	files, err := Walk(d.opts.Root, WalkOptions{
		Extensions: d.opts.Extensions,
		Exclude:    d.opts.Exclude,
		OnError: func(path string, err error) {
			d.log.Warnw("skipping unreadable path", "path", path, "error", err)
		},
	})
	if err != nil {
		return nil, err
	}
	d.log.Infow("run started", "run_id", d.opts.RunID, "root", d.opts.Root, "files", len(files))

	if d.history != nil {
		if err := d.history.StartRun(ctx, store.Run{ID: d.opts.RunID, Root: d.opts.Root, StartedAt: started, Files: len(files)}); err != nil {
			d.log.Warnw("record run start failed", "error", err)
		}
	}

	d.loadSharedFixtures()

	var runErr error
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		fr, err := d.processFile(ctx, path)
		if err != nil {
			runErr = err
			break
		}
		report.Files = append(report.Files, fr)
	}

	report.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	report.Tally()
	d.finish(report, started)
	return report, runErr
}

// finish persists the report and run history. Persistence uses a fresh
// context so a cancelled run is still recorded.
func (d *Driver) finish(report *pipeline.RunReport, started time.Time) {
	if d.reports != nil {
		path, err := d.reports.Save(report)
		if err != nil {
			d.log.Warnw("save run report failed", "error", err)
		} else {
			d.log.Infow("run report saved", "path", path)
		}
	}
	if d.history != nil {
		finished := time.Now().UTC()
		run := store.Run{
			ID:         report.ID,
			Root:       report.Root,
			StartedAt:  started,
			FinishedAt: &finished,
			Files:      len(report.Files),
			Clean:      report.Counts[string(repair.Clean)],
			Fixed:      report.Counts[string(repair.Fixed)],
			Exhausted:  report.Counts[string(repair.Exhausted)],
			Stalled:    report.Counts[string(repair.Stalled)],
			Errored:    report.Counts[string(repair.Errored)],
		}
		if err := d.history.FinishRun(context.Background(), run); err != nil {
			d.log.Warnw("record run finish failed", "error", err)
		}
	}
}

// processFile returns the file's report. The error is set only when ctx
// was cancelled.
func (d *Driver) processFile(ctx context.Context, path string) (pipeline.FileReport, error) {
	start := time.Now()
	fr := pipeline.FileReport{Path: path}
	errored := func(err error) (pipeline.FileReport, error) {
		fr.Outcome = string(repair.Errored)
		fr.Error = err.Error()
		fr.DurationMs = time.Since(start).Milliseconds()
		d.log.Warnw("file errored", "file", path, "error", err)
		return fr, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errored(fmt.Errorf("read file: %w", err))
	}
	content := string(data)

	cases, err := d.casesFor(path)
	if err != nil {
		return errored(err)
	}

	langID, err := d.languageFor(ctx, path, content)
	if err != nil {
		if ctx.Err() != nil {
			return fr, ctx.Err()
		}
		return errored(err)
	}
	fr.LanguageID = langID

	d.log.Infow("processing file", "file", path, "language_id", langID, "cases", len(cases))
	res, err := d.repairer.Run(ctx, repair.NewFile(path, content, langID), cases)
	if err != nil {
		return fr, err
	}

	fr.Outcome = string(res.Outcome)
	fr.Rounds = res.Rounds
	fr.Tickets = res.Tickets
	fr.Written = res.Written
	fr.Error = res.ErrText()
	fr.DurationMs = time.Since(start).Milliseconds()
	return fr, nil
}

func (d *Driver) loadSharedFixtures() {
	if d.opts.Fixtures == "" {
		d.sharedErr = errors.New("no fixture file configured")
		return
	}
	d.shared, d.sharedErr = fixtures.Load(d.opts.Fixtures)
	if d.sharedErr != nil {
		d.log.Warnw("shared fixtures unavailable", "path", d.opts.Fixtures, "error", d.sharedErr)
	}
}

// casesFor returns the file's override fixtures, otherwise a copy of the
// shared fixtures.
func (d *Driver) casesFor(path string) ([]fixtures.TestCase, error) {
	cases, override, err := fixtures.ForFile(path, d.shared)
	if err != nil {
		return nil, fmt.Errorf("load fixture override: %w", err)
	}
	if !override && d.sharedErr != nil {
		return nil, fmt.Errorf("load fixtures: %w", d.sharedErr)
	}
	return cases, nil
}

// languageFor resolves the sandbox language id: configured extension map
// first, then the catalog. Only a successful fetch is cached; a failed one is
// retried for the next file.
func (d *Driver) languageFor(ctx context.Context, path, content string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if id, ok := d.opts.Languages[ext]; ok {
		return id, nil
	}
	if d.catalog == nil {
		return 0, fmt.Errorf("%w for %s", ErrUnknownLanguage, ext)
	}
	if !d.fetched {
		langs, err := d.catalog.Languages(ctx)
		if err != nil {
			return 0, fmt.Errorf("fetch language catalog: %w", err)
		}
		d.languages = langs
		d.fetched = true
	}
	lang, ok := sandbox.Identify(d.languages, content)
	if !ok {
		return 0, fmt.Errorf("%w for %s", ErrUnknownLanguage, ext)
	}
	d.log.Debugw("language identified", "file", path, "language", lang.Name, "id", lang.ID)
	return lang.ID, nil
}
