package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "weather_snapshot"

var (
	// PipelineRuns counts finished pipeline runs by provider and outcome (ok or an error kind).
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Finished snapshot pipeline runs.",
	}, []string{"provider", "outcome"})

	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Wall time of network-backed snapshot pipeline runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	// CacheLookups counts cache reads by data kind and result (hit, miss, corrupt).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by data kind and result.",
	}, []string{"kind", "result"})

	// AlertFailures counts absorbed alert fetch failures.
	AlertFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_fetch_failures_total",
		Help:      "Alert fetches that failed and were replaced by an empty list.",
	}, []string{"provider"})
)
