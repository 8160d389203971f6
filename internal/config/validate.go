package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var recognizedTrackers = map[string]bool{
	TrackerJira:   true,
	TrackerGitHub: true,
	TrackerLog:    true,
}

var recognizedProviders = map[string]bool{
	ProviderOpenAI: true,
	ProviderClaude: true,
}

var recognizedPatchModes = map[string]bool{
	PatchReplaceFile: true,
	PatchSubstitute:  true,
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
// Credentials are checked too, so call it after ApplyEnv.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Root == "" {
		errs = append(errs, ValidationError{Field: "root", Message: "is required"})
	}
	if len(cfg.Extensions) == 0 {
		errs = append(errs, ValidationError{Field: "extensions", Message: "at least one extension is required"})
	}
	for i, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("extensions[%d]", i),
				Message: fmt.Sprintf("extension %q must start with a dot", ext),
			})
		}
	}
	for i, pattern := range cfg.Exclude {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("exclude[%d]", i),
				Message: fmt.Sprintf("invalid regex %q: %v", pattern, err),
			})
		}
	}
	if cfg.Fixtures == "" {
		errs = append(errs, ValidationError{Field: "fixtures", Message: "is required"})
	}

	// Sorted so the error order is stable across runs.
	exts := make([]string, 0, len(cfg.Languages))
	for ext := range cfg.Languages {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		if cfg.Languages[ext] <= 0 {
			errs = append(errs, ValidationError{
				Field:   "languages." + ext,
				Message: fmt.Sprintf("language id must be positive, got %d", cfg.Languages[ext]),
			})
		}
	}

	validateSandbox(cfg.Sandbox, &errs)
	validateTracker(cfg.Tracker, &errs)
	validateSuggest(cfg.Suggest, &errs)
	validateRepair(cfg.Repair, &errs)

	return errs
}

func validateSandbox(s Sandbox, errs *[]ValidationError) {
	if s.BaseURL == "" {
		*errs = append(*errs, ValidationError{Field: "sandbox.base_url", Message: "is required"})
	}
	validateDuration("sandbox.poll_interval", s.PollInterval, errs)
	validateDuration("sandbox.poll_max_interval", s.PollMaxInterval, errs)
	validateDuration("sandbox.poll_timeout", s.PollTimeout, errs)
	validateDuration("sandbox.http_timeout", s.HTTPTimeout, errs)
	if s.PollIntervalDur > 0 && s.PollMaxIntervalDur > 0 && s.PollMaxIntervalDur < s.PollIntervalDur {
		*errs = append(*errs, ValidationError{
			Field:   "sandbox.poll_max_interval",
			Message: "must not be shorter than poll_interval",
		})
	}
}

func validateTracker(t Tracker, errs *[]ValidationError) {
	if !recognizedTrackers[t.Kind] {
		*errs = append(*errs, ValidationError{
			Field:   "tracker.kind",
			Message: fmt.Sprintf("unrecognized tracker %q", t.Kind),
		})
		return
	}

	if t.Kind == TrackerJira {
		if t.BaseURL == "" {
			*errs = append(*errs, ValidationError{Field: "tracker.base_url", Message: "is required for jira (JIRA_BASE_URL)"})
		}
		if t.Username == "" || t.APIToken == "" {
			*errs = append(*errs, ValidationError{Field: "tracker.credentials", Message: "JIRA_USERNAME and JIRA_API_TOKEN are required for jira"})
		}
		if t.ProjectKey == "" {
			*errs = append(*errs, ValidationError{Field: "tracker.project_key", Message: "is required for jira"})
		}
	}
}

func validateSuggest(g Suggest, errs *[]ValidationError) {
	if !recognizedProviders[g.Provider] {
		*errs = append(*errs, ValidationError{
			Field:   "suggest.provider",
			Message: fmt.Sprintf("unrecognized provider %q", g.Provider),
		})
	}
	if g.Provider == ProviderOpenAI && g.APIKey == "" && g.BaseURL == "" {
		*errs = append(*errs, ValidationError{Field: "suggest.api_key", Message: "OPENAI_API_KEY is required for the openai provider"})
	}
	validateDuration("suggest.timeout", g.Timeout, errs)
}

func validateRepair(r Repair, errs *[]ValidationError) {
	if r.MaxRounds < 1 {
		*errs = append(*errs, ValidationError{
			Field:   "repair.max_rounds",
			Message: fmt.Sprintf("must be at least 1, got %d", r.MaxRounds),
		})
	}
	if !recognizedPatchModes[r.PatchMode] {
		*errs = append(*errs, ValidationError{
			Field:   "repair.patch_mode",
			Message: fmt.Sprintf("unrecognized patch mode %q", r.PatchMode),
		})
	}
	validateDuration("repair.round_budget", r.RoundBudget, errs)
}

func validateDuration(field, raw string, errs *[]ValidationError) {
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid duration %q", raw)})
		return
	}
	if d < 0 {
		*errs = append(*errs, ValidationError{Field: field, Message: fmt.Sprintf("duration %q must not be negative", raw)})
	}
}
