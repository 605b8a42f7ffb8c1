package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TestConfig configures an A/B test, matching the original source's
// ABTestConfig defaults.
type TestConfig struct {
	SignificanceThreshold float64
	MinimumSampleSize     int
	TestDuration          time.Duration
}

// DefaultTestConfig mirrors the original source's ABTestConfig defaults.
func DefaultTestConfig() TestConfig {
	return TestConfig{
		SignificanceThreshold: 0.05,
		MinimumSampleSize:     100,
		TestDuration:          24 * time.Hour,
	}
}

// Results is the outcome of a completed A/B test, matching the original
// source's ABTestResults.
type Results struct {
	TestID                   string
	Winner                   string
	Snapshot                 map[string]ModelMetrics
	StatisticallySignificant bool
}

type abTest struct {
	id           string
	languagePair string
	modelIDs     []string
	splits       []float64 // cumulative percentages, same order as modelIDs
	cfg          TestConfig

	active bool
	start  time.Time
	end    time.Time

	mu      sync.Mutex
	results *Results
}

func (t *abTest) modelForBucket(bucket float64) string {
	for i, cum := range t.splits {
		if bucket < cum {
			return t.modelIDs[i]
		}
	}
	return t.modelIDs[len(t.modelIDs)-1]
}

// CreateTest defines a new A/B test across modelIDs with split
// percentages that must sum to 100.
func (r *Router) CreateTest(testID, languagePair string, modelIDs []string, splitPercentages []float64, cfg TestConfig) error {
	if len(modelIDs) != len(splitPercentages) {
		return fmt.Errorf("metrics: model and split counts differ")
	}
	sum := 0.0
	cumulative := make([]float64, len(splitPercentages))
	for i, p := range splitPercentages {
		sum += p
		cumulative[i] = sum
	}
	if sum < 99.99 || sum > 100.01 {
		return fmt.Errorf("metrics: split percentages must sum to 100, got %.2f", sum)
	}

	r.abMu.Lock()
	defer r.abMu.Unlock()
	r.tests[testID] = &abTest{
		id:           testID,
		languagePair: languagePair,
		modelIDs:     modelIDs,
		splits:       cumulative,
		cfg:          cfg,
	}
	return nil
}

// StartTest activates a test, capturing its start and end time.
func (r *Router) StartTest(testID string) error {
	r.abMu.Lock()
	defer r.abMu.Unlock()
	t, ok := r.tests[testID]
	if !ok {
		return fmt.Errorf("metrics: unknown test %q", testID)
	}
	t.active = true
	t.start = time.Now()
	t.end = t.start.Add(t.cfg.TestDuration)
	return nil
}

// StopTest deactivates a test immediately and computes its results.
func (r *Router) StopTest(testID string) (Results, error) {
	r.abMu.Lock()
	t, ok := r.tests[testID]
	r.abMu.Unlock()
	if !ok {
		return Results{}, fmt.Errorf("metrics: unknown test %q", testID)
	}
	t.mu.Lock()
	t.active = false
	t.mu.Unlock()
	return r.finalizeTest(t), nil
}

// SweepExpiredTests completes any active test whose duration has
// elapsed, matching the original source's backgroundProcessingLoop.
func (r *Router) SweepExpiredTests() []Results {
	now := time.Now()
	r.abMu.Lock()
	var expired []*abTest
	for _, t := range r.tests {
		t.mu.Lock()
		due := t.active && now.After(t.end)
		t.mu.Unlock()
		if due {
			expired = append(expired, t)
		}
	}
	r.abMu.Unlock()

	var out []Results
	for _, t := range expired {
		t.mu.Lock()
		t.active = false
		t.mu.Unlock()
		out = append(out, r.finalizeTest(t))
	}
	return out
}

func (r *Router) finalizeTest(t *abTest) Results {
	snapshot := make(map[string]ModelMetrics, len(t.modelIDs))
	var minSamples uint64 = ^uint64(0)
	var best string
	var bestScore = -1.0

	for _, id := range t.modelIDs {
		m, ok := r.Get(id, t.languagePair)
		if !ok {
			m = ModelMetrics{ModelID: id, LanguagePair: t.languagePair}
		}
		snapshot[id] = m
		if m.SuccessCount < minSamples {
			minSamples = m.SuccessCount
		}
		if m.CompositeScore > bestScore {
			bestScore = m.CompositeScore
			best = id
		}
	}

	results := Results{
		TestID:                   t.id,
		Winner:                   best,
		Snapshot:                 snapshot,
		StatisticallySignificant: minSamples >= uint64(t.cfg.MinimumSampleSize),
	}

	t.mu.Lock()
	t.results = &results
	t.mu.Unlock()
	return results
}

// TestResults returns the most recently computed results for a test, if
// any (it has been stopped or swept as expired at least once).
func (r *Router) TestResults(testID string) (Results, bool) {
	r.abMu.Lock()
	t, ok := r.tests[testID]
	r.abMu.Unlock()
	if !ok {
		return Results{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.results == nil {
		return Results{}, false
	}
	return *t.results, true
}

// sortedModelIDs returns the model ids of all in lexical order. Nothing
// in the package calls it; GenerateReport orders by composite score.
func sortedModelIDs(all []ModelMetrics) []string {
	ids := make([]string, len(all))
	for i, m := range all {
		ids[i] = m.ModelID
	}
	sort.Strings(ids)
	return ids
}
