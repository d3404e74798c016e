// Package metrics exposes the Prometheus collectors of the report engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	pagesFetched     prometheus.Counter
	truncations      prometheus.Counter
	itemErrors       *prometheus.CounterVec
	reports          *prometheus.CounterVec
	reportDuration   *prometheus.HistogramVec
	jobs             *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schoolreport",
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the school backend by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "schoolreport",
			Name:      "upstream_request_seconds",
			Help:      "Latency of school backend requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schoolreport",
			Name:      "pages_fetched_total",
			Help:      "Student list pages fetched.",
		}),
		truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schoolreport",
			Name:      "pagination_truncations_total",
			Help:      "Fetches stopped by the page safety cap or a row limit.",
		}),
		itemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schoolreport",
			Name:      "enrich_item_errors_total",
			Help:      "Per-record enrichment failures by wave and error policy.",
		}, []string{"wave", "policy"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schoolreport",
			Name:      "reports_total",
			Help:      "Generated reports by type and outcome.",
		}, []string{"report", "outcome"}),
		reportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "schoolreport",
			Name:      "report_generation_seconds",
			Help:      "End-to-end report generation time.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"report"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schoolreport",
			Name:      "jobs_total",
			Help:      "Report jobs by final status.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.upstreamRequests, m.upstreamLatency, m.pagesFetched, m.truncations,
		m.itemErrors, m.reports, m.reportDuration, m.jobs,
	)
	return m
}

// ObserveUpstream records one school backend call. code 0 means transport failure.
func (m *Metrics) ObserveUpstream(endpoint string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.pagesFetched.Inc()
}

func (m *Metrics) Truncated() {
	if m == nil {
		return
	}
	m.truncations.Inc()
}

func (m *Metrics) ItemError(wave, policy string) {
	if m == nil {
		return
	}
	m.itemErrors.WithLabelValues(wave, policy).Inc()
}

// ObserveReport records a finished report generation.
func (m *Metrics) ObserveReport(report string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.reports.WithLabelValues(report, outcome).Inc()
	m.reportDuration.WithLabelValues(report).Observe(d.Seconds())
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}
