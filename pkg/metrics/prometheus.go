package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registerer is the subset of prometheus.Registerer the router needs,
// so callers can pass a *prometheus.Registry or the default registerer
// interchangeably.
type Registerer = prometheus.Registerer

// promExporter mirrors the shape of the retrieval pack's gateway
// service metrics (per-stage histograms, per-category error counters)
// but scoped to model-routing decisions instead of pipeline stages.
type promExporter struct {
	latency    *prometheus.HistogramVec
	confidence *prometheus.HistogramVec
	samples    *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

func newPromExporter(reg Registerer, namespace string) *promExporter {
	factory := promauto.With(reg)
	return &promExporter{
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_ms",
			Help:      "Engine call latency in milliseconds by model and language pair.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"model_id", "language_pair"}),
		confidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_confidence",
			Help:      "Reported confidence score by model and language pair.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 10),
		}, []string{"model_id", "language_pair"}),
		samples: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_samples_total",
			Help:      "Total samples recorded by model, language pair, and outcome.",
		}, []string{"model_id", "language_pair", "outcome"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_errors_total",
			Help:      "Total failed samples by model and language pair.",
		}, []string{"model_id", "language_pair"}),
	}
}

func (p *promExporter) observe(s Sample) {
	outcome := "success"
	if !s.Success {
		outcome = "failure"
		p.errors.WithLabelValues(s.ModelID, s.LanguagePair).Inc()
	}
	p.samples.WithLabelValues(s.ModelID, s.LanguagePair, outcome).Inc()
	if s.Success {
		p.latency.WithLabelValues(s.ModelID, s.LanguagePair).Observe(s.LatencyMS)
		p.confidence.WithLabelValues(s.ModelID, s.LanguagePair).Observe(s.Confidence)
	}
}
