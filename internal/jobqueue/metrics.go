package jobqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "mergeguard_jobqueue"

type metricCollector struct {
	queueLen      prometheus.Gauge
	enqueued      prometheus.Counter
	drained       prometheus.Counter
	failed        prometheus.Counter
	drainDuration prometheus.Histogram
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		queueLen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      "queued_jobs_count",
				Help:      "number of queued jobs, including duplicates",
			},
		),
		enqueued: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "enqueued_jobs_total",
				Help:      "count of enqueued jobs",
			},
		),
		drained: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "processed_jobs_total",
				Help:      "count of deduplicated jobs that were processed",
			},
		),
		failed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      "failed_jobs_total",
				Help:      "count of jobs that failed processing",
			},
		),
		drainDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      "drain_duration_seconds",
				Help:      "duration of processing all jobs of a drain",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

func (m *metricCollector) QueueLenSet(l int) {
	m.queueLen.Set(float64(l))
}

func (m *metricCollector) EnqueuedInc() {
	m.enqueued.Inc()
}

func (m *metricCollector) DrainedAdd(n int) {
	m.drained.Add(float64(n))
}

func (m *metricCollector) FailedInc() {
	m.failed.Inc()
}

func (m *metricCollector) DrainDurationObserve(seconds float64) {
	m.drainDuration.Observe(seconds)
}
