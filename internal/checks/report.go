package checks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lucasnoah/fixloop/internal/fixtures"
	"github.com/lucasnoah/fixloop/internal/sandbox"
)

// defaultMaxErrorBytes caps how much failure text a group retains.
const defaultMaxErrorBytes = 8000

// CaseResult is the outcome of one fixture case.
type CaseResult struct {
	Case    fixtures.TestCase `json:"case"`
	Passed  bool              `json:"passed"`
	Actual  string            `json:"actual,omitempty"`
	Err     error             `json:"-"`
	ErrText string            `json:"error,omitempty"`
}

// Report is the structured output of a RunAll call.
type Report struct {
	AllPassed  bool         `json:"all_passed"`
	Cases      []CaseResult `json:"cases"`
	DurationMs int          `json:"duration_ms"`

	maxErrorBytes int
}

// Failure is a group of failing cases that share a cause.
type Failure struct {
	Key   string `json:"key"`
	Cases []int  `json:"cases"`
	Text  string `json:"text"`
}

// JSON returns the report as indented JSON.
func (r *Report) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Passed returns how many cases passed.
func (r *Report) Passed() int {
	n := 0
	for _, c := range r.Cases {
		if c.Passed {
			n++
		}
	}
	return n
}

// Failures groups failing cases by cause. Cases that failed with the same
// sandbox failure form one group; every output mismatch is its own group.
// Groups keep the order of their first failing case.
func (r *Report) Failures() []Failure {
	groups := make(map[string]*Failure)
	var order []string
	byKey := make(map[string][]CaseResult)

	for _, c := range r.Cases {
		if c.Passed {
			continue
		}
		key := failureKey(c)
		if _, ok := groups[key]; !ok {
			groups[key] = &Failure{Key: key}
			order = append(order, key)
		}
		groups[key].Cases = append(groups[key].Cases, c.Case.ID)
		byKey[key] = append(byKey[key], c)
	}

	limit := r.maxErrorBytes
	if limit <= 0 {
		limit = defaultMaxErrorBytes
	}
	out := make([]Failure, 0, len(order))
	for _, key := range order {
		f := groups[key]
		f.Text = Truncate(describe(byKey[key]), limit)
		out = append(out, *f)
	}
	return out
}

// ErrorText joins every failure group's text, separated by blank lines.
func (r *Report) ErrorText() string {
	var parts []string
	for _, f := range r.Failures() {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, "\n")
}

func failureKey(c CaseResult) string {
	if c.Err == nil {
		return "mismatch:" + strconv.Itoa(c.Case.ID)
	}
	var sf *sandbox.SandboxFailure
	if errors.As(c.Err, &sf) {
		return fmt.Sprintf("sandbox:%s:%s", sf.Kind, sf.Message)
	}
	var nf *sandbox.NetworkFailure
	if errors.As(c.Err, &nf) {
		return "network:" + nf.Error()
	}
	return "error:" + c.Err.Error()
}

// describe renders the failure text for one group.
func describe(cases []CaseResult) string {
	var b strings.Builder
	if len(cases) == 1 {
		c := cases[0]
		fmt.Fprintf(&b, "Test case %d failed:\n", c.Case.ID)
		fmt.Fprintf(&b, "Input: %s\n", c.Case.Input)
		if c.Err != nil {
			fmt.Fprintf(&b, "Error: %s\n", c.ErrText)
		} else {
			fmt.Fprintf(&b, "Expected Output: %s\n", c.Case.Output)
			fmt.Fprintf(&b, "Actual Output: %s\n", c.Actual)
		}
		return b.String()
	}

	ids := make([]string, len(cases))
	for i, c := range cases {
		ids[i] = strconv.Itoa(c.Case.ID)
	}
	fmt.Fprintf(&b, "Test cases %s failed:\n", strings.Join(ids, ", "))
	fmt.Fprintf(&b, "Error: %s\n", cases[0].ErrText)
	return b.String()
}

// Truncate keeps at most the last limit bytes of s, starting on a rune
// boundary. Errors and tracebacks are usually at the end.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	start := len(s) - limit
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "…(truncated)\n" + s[start:]
}
