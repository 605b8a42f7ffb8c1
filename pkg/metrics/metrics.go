// Package metrics records per-model performance, ranks models, and
// sticks sessions to an active A/B test's assigned model, optionally
// exporting the same data to Prometheus.
package metrics

import (
	"hash/fnv"
	"sync"
	"time"
)

// Sample is one observation fed into Record.
type Sample struct {
	ModelID        string
	LanguagePair   string
	LatencyMS      float64
	WER            float64
	Confidence     float64
	AudioQuality   float64
	Success        bool
}

// ModelMetrics is the rolling performance record for one (model,
// language pair), matching the original source's ModelPerformanceMetrics.
type ModelMetrics struct {
	ModelID      string
	LanguagePair string

	TotalCount      uint64
	SuccessCount    uint64
	MeanLatencyMS   float64
	MeanWER         float64
	MeanConfidence  float64
	MeanAudioQuality float64
	CompositeScore  float64

	FirstUsed time.Time
	LastUsed  time.Time
}

type key struct {
	modelID string
	pair    string
}

// Router owns rolling metrics for every model and drives model
// selection, both the static best-model choice and session-sticky A/B
// assignment.
type Router struct {
	mu      sync.RWMutex
	metrics map[key]*ModelMetrics

	abMu  sync.Mutex
	tests map[string]*abTest

	assignMu sync.Mutex
	assigned map[string]string // "testID:sessionID" -> modelID

	prom *promExporter
}

// NewRouter constructs an empty metrics router.
func NewRouter() *Router {
	return &Router{
		metrics:  make(map[key]*ModelMetrics),
		tests:    make(map[string]*abTest),
		assigned: make(map[string]string),
	}
}

// Record folds one observation into a model's rolling metrics.
// Unsuccessful samples still increment TotalCount but do not move the
// running means (they would distort latency/WER for a model that
// never actually produced output).
func (r *Router) Record(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{s.ModelID, s.LanguagePair}
	m, ok := r.metrics[k]
	if !ok {
		m = &ModelMetrics{ModelID: s.ModelID, LanguagePair: s.LanguagePair, FirstUsed: time.Now()}
		r.metrics[k] = m
	}

	m.TotalCount++
	m.LastUsed = time.Now()
	if s.Success {
		m.SuccessCount++
		n := float64(m.SuccessCount)
		m.MeanLatencyMS = runningMean(m.MeanLatencyMS, s.LatencyMS, n)
		m.MeanWER = runningMean(m.MeanWER, s.WER, n)
		m.MeanConfidence = runningMean(m.MeanConfidence, s.Confidence, n)
		m.MeanAudioQuality = runningMean(m.MeanAudioQuality, s.AudioQuality, n)
		m.CompositeScore = 0.6*(1-m.MeanWER) + 0.3*m.MeanConfidence + 0.1*m.MeanAudioQuality
	}

	if r.prom != nil {
		r.prom.observe(s)
	}
}

func runningMean(prevMean, x, n float64) float64 {
	if n <= 0 {
		return x
	}
	return (prevMean*(n-1) + x) / n
}

// Get returns a copy of a model's metrics, if any have been recorded.
func (r *Router) Get(modelID, languagePair string) (ModelMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[key{modelID, languagePair}]
	if !ok {
		return ModelMetrics{}, false
	}
	return *m, true
}

// All returns a copy of every tracked model's metrics.
func (r *Router) All() []ModelMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelMetrics, 0, len(r.metrics))
	for _, m := range r.metrics {
		out = append(out, *m)
	}
	return out
}

// Metric identifies which field Rank and SelectionCriteria operate on.
type Metric int

const (
	MetricLatency Metric = iota
	MetricWER
	MetricConfidence
	MetricQuality
)

func lowerIsBetter(m Metric) bool {
	return m == MetricLatency || m == MetricWER
}

func valueOf(m ModelMetrics, metric Metric) float64 {
	switch metric {
	case MetricLatency:
		return m.MeanLatencyMS
	case MetricWER:
		return m.MeanWER
	case MetricConfidence:
		return m.MeanConfidence
	case MetricQuality:
		return m.CompositeScore
	default:
		return 0
	}
}

// Rank returns model ids for a language pair ordered best-to-worst by
// metric.
func (r *Router) Rank(languagePair string, metric Metric) []string {
	r.mu.RLock()
	var subset []ModelMetrics
	for k, m := range r.metrics {
		if k.pair == languagePair {
			subset = append(subset, *m)
		}
	}
	r.mu.RUnlock()

	better := lowerIsBetter(metric)
	for i := 1; i < len(subset); i++ {
		for j := i; j > 0; j-- {
			a, b := valueOf(subset[j], metric), valueOf(subset[j-1], metric)
			swap := a < b
			if !better {
				swap = a > b
			}
			if !swap {
				break
			}
			subset[j], subset[j-1] = subset[j-1], subset[j]
		}
	}

	ids := make([]string, len(subset))
	for i, m := range subset {
		ids[i] = m.ModelID
	}
	return ids
}

// SelectionCriteria bounds the candidate pool with hard caps and scores
// survivors with weighted metrics, matching the original source's
// ModelSelectionCriteria defaults.
type SelectionCriteria struct {
	MaxLatencyMS   float64
	MinConfidence  float64
	WeightWER      float64
	WeightLatency  float64
	WeightConfidence float64
	WeightMemory   float64
}

// DefaultSelectionCriteria matches the original source's default weights.
func DefaultSelectionCriteria() SelectionCriteria {
	return SelectionCriteria{
		WeightWER:        0.4,
		WeightLatency:    0.3,
		WeightConfidence: 0.2,
		WeightMemory:     0.1,
	}
}

// SelectBest returns the model with the best composite score among
// those meeting the hard caps, or "" if none qualify. The only hard caps
// applied are MaxLatencyMS and MinConfidence, and the score is
// WeightWER*(1-WER) + WeightConfidence*confidence; WeightLatency and
// WeightMemory are not used.
func (r *Router) SelectBest(languagePair string, criteria SelectionCriteria) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := ""
	bestScore := -1.0
	for k, m := range r.metrics {
		if k.pair != languagePair {
			continue
		}
		if criteria.MaxLatencyMS > 0 && m.MeanLatencyMS > criteria.MaxLatencyMS {
			continue
		}
		if criteria.MinConfidence > 0 && m.MeanConfidence < criteria.MinConfidence {
			continue
		}
		score := criteria.WeightWER*(1-m.MeanWER) + criteria.WeightConfidence*m.MeanConfidence
		if score > bestScore {
			bestScore = score
			best = m.ModelID
		}
	}
	return best
}

// ModelFor returns the model to use for a session: the sticky A/B
// assignment if a test is active for the pair, otherwise SelectBest.
func (r *Router) ModelFor(languagePair, sessionID string) string {
	if t := r.activeTestFor(languagePair); t != nil {
		return r.assignmentFor(t, sessionID)
	}
	return r.SelectBest(languagePair, DefaultSelectionCriteria())
}

func (r *Router) activeTestFor(languagePair string) *abTest {
	r.abMu.Lock()
	defer r.abMu.Unlock()
	for _, t := range r.tests {
		if t.active && t.languagePair == languagePair {
			return t
		}
	}
	return nil
}

func (r *Router) assignmentFor(t *abTest, sessionID string) string {
	r.assignMu.Lock()
	defer r.assignMu.Unlock()

	cacheKey := t.id + ":" + sessionID
	if m, ok := r.assigned[cacheKey]; ok {
		return m
	}

	bucket := stableBucket(sessionID)
	m := t.modelForBucket(bucket)
	r.assigned[cacheKey] = m
	return m
}

// stableBucket hashes a session id into [0, 100) using the same
// fractional-bucket scheme ("hash mod 10000 / 100.0") named in the spec.
func stableBucket(sessionID string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return float64(h.Sum32()%10000) / 100.0
}

// EnablePrometheus wires gauge/histogram/counter export for subsequent
// Record calls. It is purely additive instrumentation; Router's own
// decisions never read from it.
func (r *Router) EnablePrometheus(reg Registerer, namespace string) {
	r.prom = newPromExporter(reg, namespace)
}
