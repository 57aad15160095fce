package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons.
const (
	ReasonMissingFields = "missing_fields"
	ReasonInvalidShape  = "invalid_shape"
	ReasonTooLarge      = "too_large"
)

// Metrics provides observability for the progress service.
type Metrics struct {
	Upserts       prometheus.Counter
	Rejections    *prometheus.CounterVec
	Deletes       prometheus.Counter
	StoreDuration *prometheus.HistogramVec
}

// New registers the progress collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Upserts: f.NewCounter(prometheus.CounterOpts{
			Name: "dials_progress_upserts_total",
			Help: "Progress records written",
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dials_progress_rejections_total",
			Help: "Progress saves rejected before reaching the store, by reason",
		}, []string{"reason"}),
		Deletes: f.NewCounter(prometheus.CounterOpts{
			Name: "dials_progress_deletes_total",
			Help: "Progress records deleted",
		}),
		StoreDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dials_progress_store_duration_seconds",
			Help:    "Duration of progress store operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}
}

// IncrementUpserts records a successful upsert.
func (m *Metrics) IncrementUpserts() {
	if m == nil {
		return
	}
	m.Upserts.Inc()
}

// IncrementRejections records a rejected save.
func (m *Metrics) IncrementRejections(reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(reason).Inc()
}

// IncrementDeletes records a delete.
func (m *Metrics) IncrementDeletes() {
	if m == nil {
		return
	}
	m.Deletes.Inc()
}

// ObserveStore records the duration of a store operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveStore(op string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
