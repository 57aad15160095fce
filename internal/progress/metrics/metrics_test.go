package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncrementUpserts()
	m.IncrementRejections(ReasonTooLarge)
	m.IncrementRejections(ReasonTooLarge)
	m.IncrementDeletes()
	m.ObserveStore("get", time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Upserts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rejections.WithLabelValues(ReasonTooLarge)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deletes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StoreDuration))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementUpserts()
		m.IncrementRejections(ReasonMissingFields)
		m.IncrementDeletes()
		m.ObserveStore("get", time.Now())
	})
}
