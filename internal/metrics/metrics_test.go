package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	SandboxRequestsTotal.WithLabelValues("submissions", "2xx").Inc()
	SubmissionsTotal.WithLabelValues("accepted").Inc()
	SubmissionDuration.Observe(0.2)
	TicketsTotal.WithLabelValues("log", "filed").Inc()
	SuggestionsTotal.WithLabelValues("openai", "ok").Inc()
	SuggestionLatency.WithLabelValues("openai").Observe(1.5)
	RepairOutcomesTotal.WithLabelValues("fixed").Inc()
	RepairRounds.Observe(2)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	expected := map[string]bool{
		"fixloop_sandbox_requests_total":      false,
		"fixloop_submissions_total":           false,
		"fixloop_submission_duration_seconds": false,
		"fixloop_tickets_total":               false,
		"fixloop_suggestions_total":           false,
		"fixloop_suggestion_latency_seconds":  false,
		"fixloop_repair_outcomes_total":       false,
		"fixloop_repair_rounds":               false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "metric %q not registered", name)
	}
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(RepairOutcomesTotal.WithLabelValues("stalled"))
	RepairOutcomesTotal.WithLabelValues("stalled").Inc()
	after := testutil.ToFloat64(RepairOutcomesTotal.WithLabelValues("stalled"))
	assert.Equal(t, before+1, after)
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "error"},
		{200, "2xx"},
		{201, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusClass(tt.code), "code %d", tt.code)
	}
}

func TestServeExposesMetricsUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr + "/metrics")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "fixloop_")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
