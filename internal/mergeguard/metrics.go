package mergeguard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/mergeguard/internal/gate"
	"github.com/simplesurance/mergeguard/internal/logfields"
	github_prov "github.com/simplesurance/mergeguard/internal/provider/github"
)

const metricNamespace = "mergeguard"

const (
	githubEventsMetricName     = "processed_github_events_total"
	gateOperationsMetricName   = "gate_operations_total"
	upstreamFailuresMetricName = "github_api_failures_total"
)

const (
	eventTypeLabel = "event_type"
	actionLabel    = "action"
)

type metricCollector struct {
	logger           *zap.Logger
	processedEvents  *prometheus.CounterVec
	gateOps          *prometheus.CounterVec
	upstreamFailures prometheus.Counter
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		processedEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      githubEventsMetricName,
				Help:      "count of processed github webhook events",
			},
			[]string{eventTypeLabel},
		),
		gateOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      gateOperationsMetricName,
				Help:      "count of created and updated gate check-runs",
			},
			[]string{actionLabel},
		),
		upstreamFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      upstreamFailuresMetricName,
				Help:      "count of event and job processing failures caused by the github api",
			},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *metricCollector) ProcessedEventsInc(kind github_prov.EventKind) {
	cnt, err := m.processedEvents.GetMetricWith(prometheus.Labels{eventTypeLabel: kind.String()})
	if err != nil {
		m.logGetMetricFailed(githubEventsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) GateOperationsInc(action gate.Action) {
	cnt, err := m.gateOps.GetMetricWith(prometheus.Labels{actionLabel: action.String()})
	if err != nil {
		m.logGetMetricFailed(gateOperationsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) UpstreamFailuresInc() {
	m.upstreamFailures.Inc()
}
