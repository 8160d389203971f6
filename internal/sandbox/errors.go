package sandbox

import (
	"fmt"
	"strings"
)

// FailureKind classifies a submission that did not produce accepted output.
type FailureKind string

const (
	CompileError  FailureKind = "compile_error"
	RuntimeError  FailureKind = "runtime_error"
	TimeLimit     FailureKind = "time_limit"
	InternalError FailureKind = "internal_error"
	Timeout       FailureKind = "timeout"
)

// SandboxFailure is returned when the sandbox ran the submission but it did
// not finish with accepted output, or when polling gave up.
type SandboxFailure struct {
	Kind    FailureKind
	Message string
	Token   string
}

func (e *SandboxFailure) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NetworkFailure wraps transport errors and non-2xx responses.
// StatusCode is 0 when no response was received.
type NetworkFailure struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sandbox %s: HTTP %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("sandbox %s: %v", e.Op, e.Err)
}

func (e *NetworkFailure) Unwrap() error {
	return e.Err
}

// failureFor builds the failure for a terminal, non-accepted result.
func failureFor(r *Result) *SandboxFailure {
	f := &SandboxFailure{Token: r.Token}
	switch r.Status {
	case StatusCompileError:
		f.Kind = CompileError
		f.Message = firstNonEmpty(r.CompileOutput, r.Stderr, r.Message, r.Description)
	case StatusRuntimeError:
		f.Kind = RuntimeError
		f.Message = firstNonEmpty(r.Stderr, r.Message, r.Description)
	case StatusTimeLimit:
		f.Kind = TimeLimit
		f.Message = firstNonEmpty(r.Message, r.Description)
	default:
		f.Kind = InternalError
		f.Message = firstNonEmpty(r.Message, r.Stderr, r.Description, fmt.Sprintf("status id %d", r.StatusID))
	}
	f.Message = strings.TrimSpace(f.Message)
	return f
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
