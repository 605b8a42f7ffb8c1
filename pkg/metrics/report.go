package metrics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Checkpoint is a point-in-time copy of every tracked model's metrics,
// supplementing the core router with the original source's
// checkpoint/rollback surface: a caller can snapshot metrics before
// deploying a new model version and roll back if it regresses.
type Checkpoint struct {
	TakenAt time.Time
	Metrics []ModelMetrics
}

// Checkpoint captures the router's current state.
func (r *Router) Checkpoint() Checkpoint {
	return Checkpoint{TakenAt: time.Now(), Metrics: r.All()}
}

// Rollback restores the router's metrics to a prior checkpoint,
// discarding anything recorded since. Intended for use after a
// performance-degradation alert on a newly deployed model.
func (r *Router) Rollback(cp Checkpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = make(map[key]*ModelMetrics, len(cp.Metrics))
	for _, m := range cp.Metrics {
		mc := m
		r.metrics[key{m.ModelID, m.LanguagePair}] = &mc
	}
}

// ExportJSON serializes every tracked model's metrics, matching the
// original source's exportMetrics/formatMetricsAsJson.
func (r *Router) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(r.All(), "", "  ")
}

// ImportJSON replaces the router's tracked metrics with a previously
// exported snapshot, matching the original source's
// importMetrics/parseMetricsFromJson.
func (r *Router) ImportJSON(data []byte) error {
	var all []ModelMetrics
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("metrics: import failed: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = make(map[key]*ModelMetrics, len(all))
	for _, m := range all {
		mc := m
		r.metrics[key{m.ModelID, m.LanguagePair}] = &mc
	}
	return nil
}

// GenerateReport renders a human-readable performance summary across
// every tracked model, ranked by composite quality score within each
// language pair. It matches the original source's
// generatePerformanceReport in spirit, not its exact formatting.
func (r *Router) GenerateReport() string {
	all := r.All()
	if len(all) == 0 {
		return "no model metrics recorded"
	}

	byPair := make(map[string][]ModelMetrics)
	for _, m := range all {
		byPair[m.LanguagePair] = append(byPair[m.LanguagePair], m)
	}

	var b strings.Builder
	for pair, models := range byPair {
		fmt.Fprintf(&b, "language pair %s:\n", pair)
		ranked := r.Rank(pair, MetricQuality)
		byID := make(map[string]ModelMetrics, len(models))
		for _, m := range models {
			byID[m.ModelID] = m
		}
		for i, id := range ranked {
			m := byID[id]
			fmt.Fprintf(&b, "  %d. %s  score=%.3f  wer=%.3f  confidence=%.3f  samples=%d\n",
				i+1, m.ModelID, m.CompositeScore, m.MeanWER, m.MeanConfidence, m.TotalCount)
		}
	}
	return b.String()
}
