// Package checks runs a source file against its fixtures on the sandbox and
// reports which cases passed.
package checks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lucasnoah/fixloop/internal/fixtures"
	"github.com/lucasnoah/fixloop/internal/sandbox"
)

// Executor runs source with stdin and returns its stdout.
// *sandbox.Client satisfies it.
type Executor interface {
	Execute(ctx context.Context, source string, languageID int, stdin string) (string, error)
}

// ErrNoCases is returned when RunAll is given an empty fixture list.
var ErrNoCases = errors.New("no test cases to run")

// Runner executes fixtures against a source file.
type Runner struct {
	exec          Executor
	maxErrorBytes int
}

// NewRunner creates a Runner. maxErrorBytes caps the failure text kept per
// failure group; 0 means the default of 8000.
func NewRunner(exec Executor, maxErrorBytes int) *Runner {
	if maxErrorBytes <= 0 {
		maxErrorBytes = defaultMaxErrorBytes
	}
	return &Runner{exec: exec, maxErrorBytes: maxErrorBytes}
}

// RunAll executes every case in order and sets each case's Passed flag.
// Per-case sandbox and network failures mark that case failed and the run
// continues. A compile error fails the remaining cases without further
// submissions since it does not depend on input. Only an empty case list
// or a cancelled ctx produce an error.
func (r *Runner) RunAll(ctx context.Context, source string, languageID int, cases []fixtures.TestCase) (*Report, error) {
	if len(cases) == 0 {
		return nil, ErrNoCases
	}

	start := time.Now()
	report := &Report{
		AllPassed:     true,
		maxErrorBytes: r.maxErrorBytes,
	}

	var compileFailure error
	for i := range cases {
		tc := &cases[i]

		var actual string
		var err error
		if compileFailure != nil {
			err = compileFailure
		} else {
			actual, err = r.exec.Execute(ctx, source, languageID, tc.Input)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run case %d: %w", tc.ID, ctxErr)
		}

		cr := CaseResult{Case: *tc, Actual: actual}
		if err != nil {
			cr.Err = err
			cr.ErrText = err.Error()
			var sf *sandbox.SandboxFailure
			if compileFailure == nil && errors.As(err, &sf) && sf.Kind == sandbox.CompileError {
				compileFailure = err
			}
		} else {
			cr.Passed = Matches(actual, tc.Output)
		}

		tc.Passed = cr.Passed
		cr.Case.Passed = cr.Passed
		if !cr.Passed {
			report.AllPassed = false
		}
		report.Cases = append(report.Cases, cr)
	}

	report.DurationMs = int(time.Since(start).Milliseconds())
	return report, nil
}

// Matches compares actual and expected output after trimming surrounding
// whitespace on both sides.
func Matches(actual, expected string) bool {
	return strings.TrimSpace(actual) == strings.TrimSpace(expected)
}
