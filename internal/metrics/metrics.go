// Package metrics holds the prometheus collectors for the session and its
// generator calls. Collectors live in a private registry served by Handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
	OutcomeStale   = "stale"
)

var (
	Registry = prometheus.NewRegistry()

	generatorRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "dramahigh_generator_requests_total",
			Help: "Total number of generator requests, partitioned by provider, operation and status.",
		},
		[]string{"provider", "operation", "status"},
	)
	generatorDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dramahigh_generator_request_duration_seconds",
			Help:    "Latency of generator requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)
	turns = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "dramahigh_turns_total",
			Help: "Turn requests handled by the session, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	insights = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "dramahigh_insights_total",
			Help: "Insight requests handled by the session, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	art = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "dramahigh_art_total",
			Help: "Scene art responses, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	saves = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "dramahigh_save_operations_total",
			Help: "Save and load operations, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	cues = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "dramahigh_sound_cues_total",
			Help: "Sound cues actually played; cues dropped while muted or before audio init are not counted.",
		},
		[]string{"cue"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveGenerator records one generator request.
func ObserveGenerator(provider, operation string, err error, elapsed time.Duration) {
	status := OutcomeSuccess
	if err != nil {
		status = OutcomeError
	}
	generatorRequests.WithLabelValues(provider, operation, status).Inc()
	generatorDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

func IncTurn(outcome string)    { turns.WithLabelValues(outcome).Inc() }
func IncInsight(outcome string) { insights.WithLabelValues(outcome).Inc() }
func IncArt(outcome string)     { art.WithLabelValues(outcome).Inc() }
func IncCue(cue string)         { cues.WithLabelValues(cue).Inc() }

// IncSave records a save or load; operation is "save" or "load".
func IncSave(operation, outcome string) {
	saves.WithLabelValues(operation, outcome).Inc()
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
