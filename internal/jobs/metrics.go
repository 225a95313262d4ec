package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	occupancy *prometheus.GaugeVec
	receipts  prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// ObserveOccupancy publishes the latest slot snapshot.
func (m *Metrics) ObserveOccupancy(free, occupied int) {
	if m == nil {
		return
	}
	m.occupancy.WithLabelValues("free").Set(float64(free))
	m.occupancy.WithLabelValues("occupied").Set(float64(occupied))
}

// ReceiptRendered counts receipts produced by the worker.
func (m *Metrics) ReceiptRendered() {
	if m == nil {
		return
	}
	m.receipts.Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citypark_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citypark_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "citypark_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	occupancy := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "citypark_slots_snapshot",
		Help: "Slot counts by status at the last occupancy snapshot.",
	}, []string{"status"})
	receipts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citypark_receipts_rendered_total",
		Help: "Receipts rendered for closed sessions.",
	})
	registerer.MustRegister(runs, failures, duration, occupancy, receipts)
	return &Metrics{runs: runs, failures: failures, duration: duration, occupancy: occupancy, receipts: receipts}
}
