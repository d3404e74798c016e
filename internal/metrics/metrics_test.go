package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveUpstream("students", 200, 10*time.Millisecond)
	m.ObserveUpstream("students", 200, 10*time.Millisecond)
	m.PageFetched()
	m.Truncated()
	m.ItemError("detail", "degrade")
	m.ObserveReport("class-roster", nil, time.Second)
	m.ObserveReport("class-roster", errors.New("boom"), time.Second)
	m.JobFinished("done")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("students", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pagesFetched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.truncations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itemErrors.WithLabelValues("detail", "degrade")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues("class-roster", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues("done")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpstream("users", 0, time.Millisecond)
		m.PageFetched()
		m.Truncated()
		m.ItemError("bmi", "skip")
		m.ObserveReport("x", nil, 0)
		m.JobFinished("failed")
	})
}
