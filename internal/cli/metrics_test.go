package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lucasnoah/fixloop/internal/pipeline"
)

func TestRunWithMetricsNoAddr(t *testing.T) {
	want := &pipeline.RunReport{ID: "r1"}
	got, err := runWithMetrics(context.Background(), "", func(context.Context) (*pipeline.RunReport, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("report not passed through")
	}
}

func TestRunWithMetricsStopsServerWhenRunEnds(t *testing.T) {
	want := &pipeline.RunReport{ID: "r2"}
	runErr := errors.New("boom")
	got, err := runWithMetrics(context.Background(), "127.0.0.1:0", func(context.Context) (*pipeline.RunReport, error) {
		return want, runErr
	})
	if !errors.Is(err, runErr) {
		t.Fatalf("expected run error, got %v", err)
	}
	if got != want {
		t.Errorf("report not passed through")
	}
}

func TestRunWithMetricsServerFailureCancelsRun(t *testing.T) {
	got, err := runWithMetrics(context.Background(), "127.0.0.1:-1", func(ctx context.Context) (*pipeline.RunReport, error) {
		<-ctx.Done()
		return &pipeline.RunReport{ID: "partial"}, ctx.Err()
	})
	if err == nil || !strings.Contains(err.Error(), "metrics server") {
		t.Fatalf("expected metrics server error, got %v", err)
	}
	if got == nil || got.ID != "partial" {
		t.Errorf("expected partial report, got %+v", got)
	}
}
