// Package repair drives one file through the detect, suggest, verify loop.
package repair

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lucasnoah/fixloop/internal/checks"
	"github.com/lucasnoah/fixloop/internal/config"
	"github.com/lucasnoah/fixloop/internal/fixtures"
	"github.com/lucasnoah/fixloop/internal/suggest"
)

// State is a repair loop state.
type State string

const (
	Detecting  State = "detecting"
	Suggesting State = "suggesting"
	Verifying  State = "verifying"
	Done       State = "done"
)

// Outcome is how a loop ended.
type Outcome string

const (
	Clean     Outcome = "clean"     // passed on first detection
	Fixed     Outcome = "fixed"     // a candidate passed verification
	Exhausted Outcome = "exhausted" // round or time bound hit
	Stalled   Outcome = "stalled"   // suggestion produced no new content
	Errored   Outcome = "errored"   // file-level failure
)

// Success reports whether the outcome leaves the file passing.
func (o Outcome) Success() bool {
	return o == Clean || o == Fixed
}

var (
	// ErrNoProgress means the suggestion left the content unchanged.
	ErrNoProgress = errors.New("suggestion did not change the content")
	// ErrRepeatedCandidate means the suggestion matched an earlier candidate.
	ErrRepeatedCandidate = errors.New("suggestion repeats an earlier candidate")
	// ErrRoundBudget means the wall-clock budget ran out.
	ErrRoundBudget = errors.New("round budget exceeded")
	// ErrMaxRounds means every allowed round failed verification.
	ErrMaxRounds = errors.New("max rounds reached")
)

// File is the file under repair. Current is owned by one Loop.Run call.
type File struct {
	Path       string
	Original   string
	Current    string
	LanguageID int
	ErrorText  string
}

// NewFile starts a File with Current equal to the original content.
func NewFile(path, content string, languageID int) *File {
	return &File{Path: path, Original: content, Current: content, LanguageID: languageID}
}

// Runner runs fixtures against source. *checks.Runner satisfies it.
type Runner interface {
	RunAll(ctx context.Context, source string, languageID int, cases []fixtures.TestCase) (*checks.Report, error)
}

// Suggester produces a fix. *suggest.Client satisfies it.
type Suggester interface {
	Suggest(ctx context.Context, req suggest.Request) (string, error)
}

// Options bounds the loop and describes the tickets it files.
type Options struct {
	RunID       string
	MaxRounds   int
	RoundBudget time.Duration
	PatchMode   string
	DryRun      bool

	Dedupe        bool
	ProjectKey    string
	IssueType     string
	SummaryPrefix string
	Labels        []string
}

// OptionsFromConfig maps the repair and tracker sections of cfg.
func OptionsFromConfig(cfg *config.Config, runID string) Options {
	return Options{
		RunID:         runID,
		MaxRounds:     cfg.Repair.MaxRounds,
		RoundBudget:   cfg.Repair.RoundBudgetDur,
		PatchMode:     cfg.Repair.PatchMode,
		DryRun:        cfg.Repair.DryRun,
		Dedupe:        cfg.Tracker.Dedupe,
		ProjectKey:    cfg.Tracker.ProjectKey,
		IssueType:     cfg.Tracker.IssueType,
		SummaryPrefix: cfg.Tracker.Summary,
		Labels:        cfg.Tracker.Labels,
	}
}

func (o *Options) applyDefaults() {
	if o.MaxRounds <= 0 {
		o.MaxRounds = 3
	}
	if o.PatchMode == "" {
		o.PatchMode = config.PatchReplaceFile
	}
}

// Result is what one loop produced.
type Result struct {
	Path       string         `json:"path"`
	LanguageID int            `json:"language_id"`
	Outcome    Outcome        `json:"outcome"`
	Rounds     int            `json:"rounds"`
	Tickets    []string       `json:"tickets,omitempty"`
	Written    bool           `json:"written"`
	Trace      []State        `json:"trace"`
	Report     *checks.Report `json:"report,omitempty"`
	Err        error          `json:"-"`
	Duration   time.Duration  `json:"duration"`
}

// ErrText returns the error message or "".
func (r *Result) ErrText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Apply turns a suggestion into the next candidate. In replace_file mode the
// suggestion is the candidate. In substitute mode the first occurrence of
// errText in current is replaced; when errText does not occur the content is
// returned unchanged.
func Apply(mode, current, errText, suggestion string) string {
	if mode == config.PatchSubstitute {
		if errText == "" {
			return current
		}
		return strings.Replace(current, errText, suggestion, 1)
	}
	return suggestion
}
