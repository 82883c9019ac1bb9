package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the assistant core.
type Metrics struct {
	TaskExecutions *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	TasksInFlight  prometheus.Gauge

	Workflows       *prometheus.CounterVec
	WorkflowLatency prometheus.Histogram

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	RetrievalFailures *prometheus.CounterVec
	FallbackResponses prometheus.Counter
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		TaskExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finassist_task_executions_total",
				Help: "Total number of task executions by kind and outcome",
			},
			[]string{"kind", "success"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finassist_task_duration_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"kind"},
		),
		TasksInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "finassist_tasks_in_flight",
				Help: "Number of tasks currently running",
			},
		),
		Workflows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finassist_workflows_total",
				Help: "Total number of workflows by outcome",
			},
			[]string{"success"},
		),
		WorkflowLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finassist_workflow_duration_seconds",
				Help:    "End-to-end workflow duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "finassist_context_cache_hits_total",
				Help: "Context cache hits",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "finassist_context_cache_misses_total",
				Help: "Context cache misses, including stale entries",
			},
		),
		RetrievalFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finassist_retrieval_failures_total",
				Help: "Search adapter failures by source",
			},
			[]string{"source"},
		),
		FallbackResponses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "finassist_fallback_responses_total",
				Help: "Requests answered by the single-pass fallback",
			},
		),
	}
}

// Record implements Sink.
func (m *Metrics) Record(kind string, success bool, duration time.Duration) {
	m.TaskExecutions.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
	m.TaskDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveInFlight implements LoadObserver.
func (m *Metrics) ObserveInFlight(n int64) {
	m.TasksInFlight.Set(float64(n))
}

// RecordWorkflow counts one finished workflow.
func (m *Metrics) RecordWorkflow(success bool, elapsed time.Duration) {
	m.Workflows.WithLabelValues(strconv.FormatBool(success)).Inc()
	m.WorkflowLatency.Observe(elapsed.Seconds())
}

// CacheHit implements the retrieval cache observer.
func (m *Metrics) CacheHit() { m.CacheHits.Inc() }

// CacheMiss implements the retrieval cache observer.
func (m *Metrics) CacheMiss() { m.CacheMisses.Inc() }

// RetrievalFailed counts a failed search on source.
func (m *Metrics) RetrievalFailed(source string) {
	m.RetrievalFailures.WithLabelValues(source).Inc()
}

// Fallback counts a request answered without orchestration.
func (m *Metrics) Fallback() { m.FallbackResponses.Inc() }
