package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the orchestrator
type Metrics struct {
	PipelineRequests prometheus.Counter
	PipelineLatency  prometheus.Histogram
	PipelineErrors   *prometheus.CounterVec
	SkillDenials     *prometheus.CounterVec
	SkillDispatches  *prometheus.CounterVec

	WebSocketConnections prometheus.Gauge
}

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	return &Metrics{
		PipelineRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "acey_pipeline_requests_total",
			Help: "Total number of messages processed by the pipeline",
		}),

		PipelineLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "acey_pipeline_duration_seconds",
			Help:    "End-to-end pipeline latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),

		PipelineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acey_pipeline_errors_total",
			Help: "Total number of pipeline errors by type",
		}, []string{"error_type"}),

		SkillDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acey_skill_denials_total",
			Help: "Total number of permission denials by skill",
		}, []string{"skill_id"}),

		SkillDispatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acey_skill_dispatches_total",
			Help: "Total number of dispatches by module",
		}, []string{"module_id"}),

		WebSocketConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "acey_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		}),
	}
}

// RecordPipelineRequest records one processed message
func (m *Metrics) RecordPipelineRequest() {
	m.PipelineRequests.Inc()
}

// RecordPipelineLatency records end-to-end latency
func (m *Metrics) RecordPipelineLatency(seconds float64) {
	m.PipelineLatency.Observe(seconds)
}

// RecordPipelineError records a pipeline error by type
func (m *Metrics) RecordPipelineError(errorType string) {
	m.PipelineErrors.WithLabelValues(errorType).Inc()
}

// RecordDenial records a permission denial for a skill
func (m *Metrics) RecordDenial(skillID string) {
	m.SkillDenials.WithLabelValues(skillID).Inc()
}

// RecordDispatch records a module dispatch
func (m *Metrics) RecordDispatch(moduleID string) {
	m.SkillDispatches.WithLabelValues(moduleID).Inc()
}
