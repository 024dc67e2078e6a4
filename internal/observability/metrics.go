package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	FetchKindMetadata = "metadata"
	FetchKindAtlas    = "atlas"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atlasctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atlasctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	fetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atlasctl",
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Metadata and atlas fetches issued by the transport.",
		},
		[]string{"kind", "code", "success"},
	)
	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atlasctl",
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Fetch duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "success"},
	)
	pipelineRounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atlasctl",
			Subsystem: "pipeline",
			Name:      "rounds_total",
			Help:      "Coordinator scheduling rounds by outcome.",
		},
		[]string{"scene", "outcome"},
	)
	refinements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atlasctl",
			Subsystem: "panel",
			Name:      "refinements_total",
			Help:      "Accepted atlas deliveries per resolution level.",
		},
		[]string{"level"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, fetchRequests, fetchDuration, pipelineRounds, refinements)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordFetch counts one transport fetch; code is 0 on success.
func RecordFetch(kind string, code int, duration time.Duration, success bool) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	fetchRequests.WithLabelValues(kind, strconv.Itoa(code), successLabel).Inc()
	fetchDuration.WithLabelValues(kind, successLabel).Observe(duration.Seconds())
}

func RecordRound(scene, outcome string) {
	RegisterMetrics()
	pipelineRounds.WithLabelValues(scene, outcome).Inc()
}

func RecordRefinement(level int) {
	RegisterMetrics()
	refinements.WithLabelValues(strconv.Itoa(level)).Inc()
}
