package sandbox

// Language is one entry of the sandbox language catalog.
type Language struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Status is the terminal or pending state of a submission.
type Status string

const (
	StatusPending       Status = "pending"
	StatusAccepted      Status = "accepted"
	StatusCompileError  Status = "compile_error"
	StatusRuntimeError  Status = "runtime_error"
	StatusTimeLimit     Status = "time_limit"
	StatusInternalError Status = "internal_error"
)

// Result is the outcome of one submission as reported by the sandbox.
type Result struct {
	Token         string `json:"token"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Message       string `json:"message"`
	Status        Status `json:"status"`
	StatusID      int    `json:"status_id"`
	Description   string `json:"description"`
}

// Done reports whether the submission has reached a terminal status.
func (r *Result) Done() bool {
	return r.Status != StatusPending
}

// statusFromID maps Judge0 status ids onto Status.
// 1 In Queue, 2 Processing, 3 Accepted, 4 Wrong Answer, 5 Time Limit Exceeded,
// 6 Compilation Error, 7-12 Runtime Error variants, 13 Internal Error,
// 14 Exec Format Error.
func statusFromID(id int) Status {
	switch {
	case id == 1 || id == 2:
		return StatusPending
	case id == 3 || id == 4:
		// Wrong Answer only occurs when expected_output is sent, which we never do.
		return StatusAccepted
	case id == 5:
		return StatusTimeLimit
	case id == 6:
		return StatusCompileError
	case id >= 7 && id <= 12:
		return StatusRuntimeError
	default:
		return StatusInternalError
	}
}

type submissionRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type submissionToken struct {
	Token string `json:"token"`
}

type submissionStatus struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
