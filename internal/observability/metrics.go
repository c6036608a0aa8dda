package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rainfall"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Forecast metrics.
	ForecastRequests *prometheus.CounterVec // labels: outcome
	ForecastDuration prometheus.Histogram

	// Explanation metrics.
	ExplanationRequests *prometheus.CounterVec // labels: outcome
	ExplanationDuration prometheus.Histogram

	// Provider metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, op={embed,complete}, outcome={success,error,timeout}
	ProviderDuration *prometheus.HistogramVec // labels: provider, op
	EmbeddingCache   *prometheus.CounterVec   // labels: result={hit,miss}

	KnowledgeDocuments prometheus.Gauge
	EventsPublished    *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ForecastRequests,
		m.ForecastDuration,
		m.ExplanationRequests,
		m.ExplanationDuration,
		m.ProviderRequests,
		m.ProviderDuration,
		m.EmbeddingCache,
		m.KnowledgeDocuments,
		m.EventsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_requests_total",
			Help:      "Forecast requests by outcome.",
		}, []string{"outcome"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Duration of a model fit plus forecast.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ExplanationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanation_requests_total",
			Help:      "Explanation requests by outcome.",
		}, []string{"outcome"}),
		ExplanationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "explanation_duration_seconds",
			Help:      "Duration of retrieval plus chat completion.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Embedding and chat provider calls by provider, operation and outcome.",
		}, []string{"provider", "op", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Provider call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider", "op"}),
		EmbeddingCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache lookups by result.",
		}, []string{"result"}),
		KnowledgeDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_documents",
			Help:      "Number of documents in the knowledge index.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Activity events handed to the publisher by outcome.",
		}, []string{"outcome"}),
	}
}
