// Package analytics computes aggregate statistics over saved run reports.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lucasnoah/fixloop/internal/pipeline"
)

// timestamp formats to try when parsing report timestamps
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

// Since keeps the reports that started at or after since. An empty since
// keeps everything; reports with unparseable timestamps are dropped.
func Since(reports []pipeline.RunReport, since string) ([]pipeline.RunReport, error) {
	if since == "" {
		return reports, nil
	}
	cutoff, err := parseTimestamp(since)
	if err != nil {
		return nil, err
	}
	var out []pipeline.RunReport
	for _, r := range reports {
		started, err := parseTimestamp(r.StartedAt)
		if err != nil {
			continue
		}
		if !started.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

// OutcomeRate holds how often files ended in one outcome.
type OutcomeRate struct {
	Outcome string  `json:"outcome"`
	Count   int     `json:"count"`
	Pct     float64 `json:"pct"`
}

var outcomeOrder = []string{"clean", "fixed", "exhausted", "stalled", "errored"}

// Outcomes returns per-outcome file counts across reports, in the fixed
// order clean, fixed, exhausted, stalled, errored. Unknown outcomes follow
// alphabetically.
func Outcomes(reports []pipeline.RunReport) []OutcomeRate {
	counts := make(map[string]int)
	total := 0
	for _, r := range reports {
		for _, f := range r.Files {
			counts[f.Outcome]++
			total++
		}
	}

	var results []OutcomeRate
	seen := make(map[string]bool)
	for _, o := range outcomeOrder {
		seen[o] = true
		if counts[o] > 0 {
			results = append(results, OutcomeRate{Outcome: o, Count: counts[o], Pct: pct(counts[o], total)})
		}
	}
	var extra []string
	for o := range counts {
		if !seen[o] {
			extra = append(extra, o)
		}
	}
	sort.Strings(extra)
	for _, o := range extra {
		results = append(results, OutcomeRate{Outcome: o, Count: counts[o], Pct: pct(counts[o], total)})
	}
	return results
}

// FixRate is the share of files that needed repair and ended fixed.
// Clean and errored files are excluded from the denominator.
func FixRate(reports []pipeline.RunReport) float64 {
	fixed, attempted := 0, 0
	for _, r := range reports {
		for _, f := range r.Files {
			switch f.Outcome {
			case "fixed":
				fixed++
				attempted++
			case "exhausted", "stalled":
				attempted++
			}
		}
	}
	return pct(fixed, attempted)
}

// RoundDist holds the distribution of repair rounds for fixed files.
type RoundDist struct {
	Rounds int     `json:"rounds"`
	Count  int     `json:"count"`
	Pct    float64 `json:"pct"`
}

// Rounds returns how many rounds fixed files needed, ascending by rounds.
func Rounds(reports []pipeline.RunReport) []RoundDist {
	counts := make(map[int]int)
	total := 0
	for _, r := range reports {
		for _, f := range r.Files {
			if f.Outcome != "fixed" {
				continue
			}
			counts[f.Rounds]++
			total++
		}
	}
	var results []RoundDist
	for rounds, n := range counts {
		results = append(results, RoundDist{Rounds: rounds, Count: n, Pct: pct(n, total)})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Rounds < results[j].Rounds
	})
	return results
}

// DurationStats summarizes per-file wall-clock time in seconds.
type DurationStats struct {
	Outcome string  `json:"outcome"`
	Count   int     `json:"count"`
	Avg     float64 `json:"avg_seconds"`
	P50     float64 `json:"p50_seconds"`
	P95     float64 `json:"p95_seconds"`
}

// Durations returns per-outcome file duration stats, sorted by outcome.
func Durations(reports []pipeline.RunReport) []DurationStats {
	byOutcome := make(map[string][]float64)
	for _, r := range reports {
		for _, f := range r.Files {
			byOutcome[f.Outcome] = append(byOutcome[f.Outcome], float64(f.DurationMs)/1000)
		}
	}
	var results []DurationStats
	for outcome, durations := range byOutcome {
		sort.Float64s(durations)
		results = append(results, DurationStats{
			Outcome: outcome,
			Count:   len(durations),
			Avg:     avg(durations),
			P50:     percentile(durations, 50),
			P95:     percentile(durations, 95),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Outcome < results[j].Outcome
	})
	return results
}

// Throughput holds run totals for one ISO week.
type Throughput struct {
	Period string `json:"period"`
	Runs   int    `json:"runs"`
	Files  int    `json:"files"`
	Fixed  int    `json:"fixed"`
	Failed int    `json:"failed"`
}

// Weekly groups reports by ISO week of their start time, newest first,
// limited to the ten most recent weeks.
func Weekly(reports []pipeline.RunReport) []Throughput {
	byPeriod := make(map[string]*Throughput)
	for _, r := range reports {
		started, err := parseTimestamp(r.StartedAt)
		if err != nil {
			continue
		}
		year, week := started.ISOWeek()
		period := fmt.Sprintf("%d-W%02d", year, week)
		tp, ok := byPeriod[period]
		if !ok {
			tp = &Throughput{Period: period}
			byPeriod[period] = tp
		}
		tp.Runs++
		tp.Files += len(r.Files)
		for _, f := range r.Files {
			switch f.Outcome {
			case "fixed":
				tp.Fixed++
			case "exhausted", "stalled", "errored":
				tp.Failed++
			}
		}
	}

	results := make([]Throughput, 0, len(byPeriod))
	for _, tp := range byPeriod {
		results = append(results, *tp)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Period > results[j].Period
	})
	if len(results) > 10 {
		results = results[:10]
	}
	return results
}

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
