package metrics

import (
	"testing"
	"time"
)

func TestRecordUpdatesRunningMeans(t *testing.T) {
	r := NewRouter()
	r.Record(Sample{ModelID: "m1", LanguagePair: "en-es", LatencyMS: 100, WER: 0.1, Confidence: 0.9, Success: true})
	r.Record(Sample{ModelID: "m1", LanguagePair: "en-es", LatencyMS: 200, WER: 0.3, Confidence: 0.8, Success: true})

	m, ok := r.Get("m1", "en-es")
	if !ok {
		t.Fatal("expected metrics to exist")
	}
	if m.MeanLatencyMS != 150 {
		t.Errorf("expected mean latency 150, got %v", m.MeanLatencyMS)
	}
	if m.TotalCount != 2 || m.SuccessCount != 2 {
		t.Errorf("expected 2/2 counts, got total=%d success=%d", m.TotalCount, m.SuccessCount)
	}
}

func TestFailedSamplesDoNotSkewMeans(t *testing.T) {
	r := NewRouter()
	r.Record(Sample{ModelID: "m1", LanguagePair: "en-es", LatencyMS: 100, Success: true})
	r.Record(Sample{ModelID: "m1", LanguagePair: "en-es", LatencyMS: 99999, Success: false})

	m, _ := r.Get("m1", "en-es")
	if m.MeanLatencyMS != 100 {
		t.Errorf("expected failed sample to not affect mean, got %v", m.MeanLatencyMS)
	}
	if m.TotalCount != 2 || m.SuccessCount != 1 {
		t.Errorf("expected total=2 success=1, got total=%d success=%d", m.TotalCount, m.SuccessCount)
	}
}

func TestRankOrdersLatencyAscending(t *testing.T) {
	r := NewRouter()
	r.Record(Sample{ModelID: "slow", LanguagePair: "en-es", LatencyMS: 500, Success: true})
	r.Record(Sample{ModelID: "fast", LanguagePair: "en-es", LatencyMS: 50, Success: true})

	ranked := r.Rank("en-es", MetricLatency)
	if len(ranked) != 2 || ranked[0] != "fast" {
		t.Errorf("expected fast model first, got %v", ranked)
	}
}

func TestSelectBestRespectsHardCaps(t *testing.T) {
	r := NewRouter()
	r.Record(Sample{ModelID: "good-but-slow", LanguagePair: "en-es", LatencyMS: 5000, WER: 0.05, Confidence: 0.99, Success: true})
	r.Record(Sample{ModelID: "ok-and-fast", LanguagePair: "en-es", LatencyMS: 100, WER: 0.2, Confidence: 0.7, Success: true})

	criteria := DefaultSelectionCriteria()
	criteria.MaxLatencyMS = 1000
	best := r.SelectBest("en-es", criteria)
	if best != "ok-and-fast" {
		t.Errorf("expected latency cap to exclude slow model, got %q", best)
	}
}

func TestABTestStickyAssignment(t *testing.T) {
	r := NewRouter()
	if err := r.CreateTest("t1", "en-es", []string{"a", "b"}, []float64{50, 50}, DefaultTestConfig()); err != nil {
		t.Fatal(err)
	}
	if err := r.StartTest("t1"); err != nil {
		t.Fatal(err)
	}

	first := r.ModelFor("en-es", "session-123")
	for i := 0; i < 10; i++ {
		got := r.ModelFor("en-es", "session-123")
		if got != first {
			t.Fatalf("expected sticky assignment, got %q then %q", first, got)
		}
	}
}

func TestCreateTestRejectsBadSplits(t *testing.T) {
	r := NewRouter()
	if err := r.CreateTest("t1", "en-es", []string{"a", "b"}, []float64{40, 40}, DefaultTestConfig()); err == nil {
		t.Fatal("expected error for splits not summing to 100")
	}
}

func TestStopTestComputesSignificance(t *testing.T) {
	r := NewRouter()
	r.CreateTest("t1", "en-es", []string{"a", "b"}, []float64{50, 50}, TestConfig{MinimumSampleSize: 2, TestDuration: time.Hour})
	r.StartTest("t1")

	for i := 0; i < 3; i++ {
		r.Record(Sample{ModelID: "a", LanguagePair: "en-es", WER: 0.1, Confidence: 0.9, Success: true})
		r.Record(Sample{ModelID: "b", LanguagePair: "en-es", WER: 0.2, Confidence: 0.8, Success: true})
	}

	results, err := r.StopTest("t1")
	if err != nil {
		t.Fatal(err)
	}
	if !results.StatisticallySignificant {
		t.Error("expected significance once minimum sample size is met")
	}
	if results.Winner != "a" {
		t.Errorf("expected lower-WER model to win, got %q", results.Winner)
	}
}

func TestCheckpointAndRollback(t *testing.T) {
	r := NewRouter()
	r.Record(Sample{ModelID: "m1", LanguagePair: "en-es", LatencyMS: 100, WER: 0.1, Confidence: 0.9, Success: true})
	cp := r.Checkpoint()

	r.Record(Sample{ModelID: "m1", LanguagePair: "en-es", LatencyMS: 999, WER: 0.9, Confidence: 0.1, Success: true})
	r.Rollback(cp)

	m, _ := r.Get("m1", "en-es")
	if m.MeanLatencyMS != 100 {
		t.Errorf("expected rollback to restore prior mean, got %v", m.MeanLatencyMS)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	r := NewRouter()
	r.Record(Sample{ModelID: "m1", LanguagePair: "en-es", LatencyMS: 100, WER: 0.1, Confidence: 0.9, Success: true})

	data, err := r.ExportJSON()
	if err != nil {
		t.Fatal(err)
	}

	r2 := NewRouter()
	if err := r2.ImportJSON(data); err != nil {
		t.Fatal(err)
	}
	m, ok := r2.Get("m1", "en-es")
	if !ok || m.MeanLatencyMS != 100 {
		t.Errorf("expected imported metrics to match, got %+v ok=%v", m, ok)
	}
}
