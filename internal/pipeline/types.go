package pipeline

// RunReport is the persisted summary of one driver run.
type RunReport struct {
	ID         string         `json:"id"`
	Root       string         `json:"root"`
	DryRun     bool           `json:"dry_run,omitempty"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
	Files      []FileReport   `json:"files"`
	Counts     map[string]int `json:"counts"`
}

// FileReport records the outcome of one file.
type FileReport struct {
	Path       string   `json:"path"`
	LanguageID int      `json:"language_id,omitempty"`
	Outcome    string   `json:"outcome"` // "clean", "fixed", "exhausted", "stalled", "errored"
	Rounds     int      `json:"rounds"`
	Tickets    []string `json:"tickets,omitempty"`
	Written    bool     `json:"written,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// Failed reports whether any file ended in a non-success outcome.
func (r *RunReport) Failed() bool {
	for _, f := range r.Files {
		switch f.Outcome {
		case "clean", "fixed":
		default:
			return true
		}
	}
	return false
}

// Tally recomputes Counts from Files.
func (r *RunReport) Tally() {
	r.Counts = make(map[string]int)
	for _, f := range r.Files {
		r.Counts[f.Outcome]++
	}
}
