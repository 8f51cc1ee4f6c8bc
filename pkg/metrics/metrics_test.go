package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStageRun(t *testing.T) {
	before := testutil.ToFloat64(stageRuns.WithLabelValues("2", OutcomeSuccess))

	ObserveStageRun(2, OutcomeSuccess, 1500*time.Millisecond)

	after := testutil.ToFloat64(stageRuns.WithLabelValues("2", OutcomeSuccess))
	if after != before+1 {
		t.Errorf("expected counter to increment, got %f -> %f", before, after)
	}
}

func TestRecordGenerationAttempt(t *testing.T) {
	before := testutil.ToFloat64(generationAttempts.WithLabelValues("gpt-4o", OutcomeError))

	RecordGenerationAttempt("gpt-4o", OutcomeError)

	after := testutil.ToFloat64(generationAttempts.WithLabelValues("gpt-4o", OutcomeError))
	if after != before+1 {
		t.Errorf("expected counter to increment, got %f -> %f", before, after)
	}
}

func TestRecordImageFailure(t *testing.T) {
	before := testutil.ToFloat64(imageFailures)

	RecordImageFailure()

	if got := testutil.ToFloat64(imageFailures); got != before+1 {
		t.Errorf("expected counter to increment, got %f -> %f", before, got)
	}
}

func TestHandler_ServesRegistry(t *testing.T) {
	ObserveStageRun(1, OutcomeSuccess, time.Second)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "zelta_stage_runs_total") {
		t.Error("expected scrape output to include stage run counter")
	}
}
