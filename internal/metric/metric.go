// Package metric exposes Prometheus instrumentation for the question
// pipeline.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Answer paths, used as the path label on questions_total.
const (
	PathCached    = "cached"
	PathDocs      = "docs"
	PathTemplate  = "template"
	PathGenerated = "generated"
	PathNoMatch   = "no_match"
	PathDenied    = "denied"
	PathError     = "error"
)

// Metrics holds the pipeline's collectors. One instance per process.
type Metrics struct {
	registry *prometheus.Registry

	questions     *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	queryDuration *prometheus.HistogramVec
	llmRequests   *prometheus.CounterVec
	llmDuration   prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adoptiq",
			Name:      "questions_total",
			Help:      "Questions processed, labeled by the path that answered them.",
		}, []string{"path", "role"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adoptiq",
			Name:      "cache_hits_total",
			Help:      "Answers served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adoptiq",
			Name:      "cache_misses_total",
			Help:      "Cache lookups that missed.",
		}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adoptiq",
			Name:      "query_duration_seconds",
			Help:      "Database query latency by model.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adoptiq",
			Name:      "llm_requests_total",
			Help:      "LLM completions, labeled by provider and outcome.",
		}, []string{"provider", "outcome"}),
		llmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adoptiq",
			Name:      "llm_duration_seconds",
			Help:      "LLM completion latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
	}

	reg.MustRegister(
		m.questions,
		m.cacheHits,
		m.cacheMisses,
		m.queryDuration,
		m.llmRequests,
		m.llmDuration,
	)
	return m
}

// Question counts one processed question.
func (m *Metrics) Question(path, role string) {
	m.questions.WithLabelValues(path, role).Inc()
}

// CacheHit counts a cache hit.
func (m *Metrics) CacheHit() { m.cacheHits.Inc() }

// CacheMiss counts a cache miss.
func (m *Metrics) CacheMiss() { m.cacheMisses.Inc() }

// Query observes one database query.
func (m *Metrics) Query(model string, d time.Duration) {
	m.queryDuration.WithLabelValues(model).Observe(d.Seconds())
}

// LLM observes one completion attempt.
func (m *Metrics) LLM(provider string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmRequests.WithLabelValues(provider, outcome).Inc()
	m.llmDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
