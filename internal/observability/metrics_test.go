package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("viewer-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordFetch(FetchKindAtlas, 0, 24*time.Millisecond, true)
	RecordFetch(FetchKindMetadata, 404, 3*time.Millisecond, false)
	RecordRound("scene-a", "fetch")
	RecordRefinement(4)

	log.Info().Msg("observability/metrics: registration idempotent and recording paths executed")
}

func TestRecordRefinementCountsPerLevel(t *testing.T) {
	before := testutil.ToFloat64(refinements.WithLabelValues("2"))
	RecordRefinement(2)
	RecordRefinement(2)
	after := testutil.ToFloat64(refinements.WithLabelValues("2"))
	if after-before != 2 {
		t.Fatalf("expected two refinements recorded, got %v", after-before)
	}
}
