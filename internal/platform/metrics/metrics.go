package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the declaration engine and the
// shared HTTP latency histogram.
type Metrics struct {
	SavesTotal        *prometheus.CounterVec
	SaveFailures      prometheus.Counter
	DebouncedCommits  prometheus.Counter
	DraftWriteErrors  prometheus.Counter
	MirrorPosts       *prometheus.CounterVec
	MirrorPayloadSize prometheus.Histogram
	RequestLatency    *prometheus.HistogramVec
}

// New creates and registers all collectors on reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SavesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dials_session_saves_total",
			Help: "Declaration saves sent to the backend, by mode",
		}, []string{"mode"}),
		SaveFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "dials_session_save_failures_total",
			Help: "Declaration saves rejected by the backend or the network",
		}),
		DebouncedCommits: f.NewCounter(prometheus.CounterOpts{
			Name: "dials_scheduler_commits_total",
			Help: "Debounced patch commits fired after a quiet period",
		}),
		DraftWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "dials_draft_write_errors_total",
			Help: "Local draft store writes swallowed after a storage failure",
		}),
		MirrorPosts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dials_mirror_posts_total",
			Help: "Progress mirror POSTs, by outcome (sent, pruned, failed)",
		}, []string{"outcome"}),
		MirrorPayloadSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dials_mirror_payload_bytes",
			Help:    "Serialized size of mirrored progress payloads",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 10),
		}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dials_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// IncrementSaves records a save sent with mode ("PATCH" or "PUT").
func (m *Metrics) IncrementSaves(mode string) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(mode).Inc()
}

// IncrementSaveFailures records a failed save.
func (m *Metrics) IncrementSaveFailures() {
	if m == nil {
		return
	}
	m.SaveFailures.Inc()
}

// IncrementDebouncedCommits records a commit fired by a scheduler.
func (m *Metrics) IncrementDebouncedCommits() {
	if m == nil {
		return
	}
	m.DebouncedCommits.Inc()
}

// IncrementDraftWriteErrors records a swallowed draft store failure.
func (m *Metrics) IncrementDraftWriteErrors() {
	if m == nil {
		return
	}
	m.DraftWriteErrors.Inc()
}

// ObserveMirrorPost records a mirror attempt and its payload size.
func (m *Metrics) ObserveMirrorPost(outcome string, size int) {
	if m == nil {
		return
	}
	m.MirrorPosts.WithLabelValues(outcome).Inc()
	m.MirrorPayloadSize.Observe(float64(size))
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(route, method).Observe(d.Seconds())
}
