package monitoring

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const prefix = "birdwatcher_"

const (
	MetricLabelKind    = "kind"
	MetricLabelTool    = "tool"
	MetricLabelError   = "error"
	MetricLabelModel   = "model"
	MetricLabelOutcome = "outcome"
)

var (
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%swebhook_deliveries_total", prefix),
			Help: "Total number of webhook deliveries by classified kind",
		},
		[]string{MetricLabelKind},
	)
	DuplicateDeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%sduplicate_deliveries_total", prefix),
			Help: "Total number of deliveries suppressed by the dedup ledger",
		},
	)
	ToolInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%stool_invocations_total", prefix),
			Help: "Total number of MCP tool invocations",
		},
		[]string{MetricLabelTool, MetricLabelError},
	)
	AgentRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%sagent_run_duration_seconds", prefix),
			Help:    "Histogram of full agent run durations",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{MetricLabelModel, MetricLabelOutcome},
	)
	WorkerTasksInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: fmt.Sprintf("%sworker_tasks_in_flight", prefix),
			Help: "Number of tasks currently executing in the worker pool",
		},
	)
	WorkerFallbackSpawns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%sworker_fallback_spawns_total", prefix),
			Help: "Total number of tasks run on detached goroutines after pool rejection",
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		WebhookDeliveries,
		DuplicateDeliveries,
		ToolInvocations,
		AgentRunDuration,
		WorkerTasksInFlight,
		WorkerFallbackSpawns,
	)
}
