// Package metrics exposes the Prometheus instruments for the command
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineOutcomes counts finished pipeline executions by terminal status.
	PipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pilot_pipeline_outcomes_total",
		Help: "Pipeline executions by terminal status.",
	}, []string{"status"})

	// PipelineDuration observes end-to-end pipeline latency.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pilot_pipeline_duration_seconds",
		Help:    "End-to-end pipeline execution time.",
		Buckets: prometheus.DefBuckets,
	})

	// FallbackActivations counts intents produced by the keyword classifier
	// instead of the model.
	FallbackActivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pilot_nlu_fallback_activations_total",
		Help: "Intent resolutions that degraded to the keyword classifier.",
	})

	// SecurityEvents counts recorded security events by type.
	SecurityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pilot_security_events_total",
		Help: "Security events by event type.",
	}, []string{"event_type"})

	// RateLimitDenials counts requests rejected by the rate limiter.
	RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pilot_rate_limit_denials_total",
		Help: "Requests denied by the rate limiter, by action.",
	}, []string{"action"})
)
