// Package metrics holds the Prometheus collectors for sandbox calls,
// tickets, suggestions and repair outcomes, plus the /metrics server.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SuggestBuckets covers completion latencies from 100ms to 120s.
var SuggestBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// SandboxRequestsTotal counts HTTP calls to the execution sandbox by endpoint and status class.
	SandboxRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixloop_sandbox_requests_total",
			Help: "Sandbox HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// SubmissionsTotal counts finished submissions by terminal status.
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixloop_submissions_total",
			Help: "Sandbox submissions by terminal status",
		},
		[]string{"status"},
	)

	// SubmissionDuration records submit-to-terminal time in seconds.
	SubmissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fixloop_submission_duration_seconds",
			Help:    "Submission duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TicketsTotal counts tickets by tracker and result (filed, deduped, error).
	TicketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixloop_tickets_total",
			Help: "Tickets",
		},
		[]string{"tracker", "result"},
	)

	// SuggestionsTotal counts completion requests by provider and status.
	SuggestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixloop_suggestions_total",
			Help: "Suggestion requests",
		},
		[]string{"provider", "status"},
	)

	// SuggestionLatency records completion latency in seconds.
	SuggestionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fixloop_suggestion_latency_seconds",
			Help:    "Suggestion latency",
			Buckets: SuggestBuckets,
		},
		[]string{"provider"},
	)

	// RepairOutcomesTotal counts finished repair loops by outcome.
	RepairOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixloop_repair_outcomes_total",
			Help: "Repair loop outcomes",
		},
		[]string{"outcome"},
	)

	// RepairRounds records how many suggest/verify rounds a loop used.
	RepairRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fixloop_repair_rounds",
			Help:    "Suggest/verify rounds per file",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)
)

func init() {
	prometheus.MustRegister(
		SandboxRequestsTotal,
		SubmissionsTotal,
		SubmissionDuration,
		TicketsTotal,
		SuggestionsTotal,
		SuggestionLatency,
		RepairOutcomesTotal,
		RepairRounds,
	)
}

// StatusClass maps an HTTP status code to "2xx", "4xx", "5xx", or "error" for 0.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Serve exposes the default registry on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
