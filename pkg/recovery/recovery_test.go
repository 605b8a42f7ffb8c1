package recovery

import (
	"errors"
	"testing"
	"time"

	"github.com/lokutor-ai/lokutor-relay/pkg/orchestrator"
)

func newTestOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	cfg := orchestrator.DefaultConfig()
	cfg.EnableAutomaticCleanup = false
	o := orchestrator.New(cfg, nil)
	t.Cleanup(o.Close)
	return o
}

func TestRetryImmediateMovesUtteranceBack(t *testing.T) {
	o := newTestOrchestrator(t)
	id, err := o.Create("s1")
	if err != nil {
		t.Fatal(err)
	}
	o.Process(id) // -> Transcribing, runs to Complete via simulation quickly

	configs := map[Category]Config{
		AudioProcessing: {Strategy: RetryImmediate, MaxAttempts: 2, BaseDelay: 10 * time.Millisecond},
	}
	c := New(o, configs, nil, nil)
	defer c.Close()

	ok := c.Attempt(id, AudioProcessing, errors.New("boom"))
	if !ok {
		t.Fatal("expected retry to be dispatched")
	}

	u, found := o.Get(id)
	if !found {
		t.Fatal("utterance disappeared")
	}
	if u.State != orchestrator.Transcribing && u.State != orchestrator.Complete {
		t.Errorf("expected utterance back in transcribing (or already re-completed), got %v", u.State)
	}
}

func TestMaxAttemptsZeroNeverRetries(t *testing.T) {
	o := newTestOrchestrator(t)
	id, _ := o.Create("s1")

	configs := map[Category]Config{
		STT: {Strategy: RetryWithDelay, MaxAttempts: 0, BaseDelay: time.Millisecond},
	}
	var notified bool
	c := New(o, configs, func(uid uint64, msg string, final bool) {
		notified = true
	}, nil)
	defer c.Close()

	ok := c.Attempt(id, STT, errors.New("fail"))
	if ok {
		t.Fatal("expected MaxAttempts=0 to never retry")
	}
	if !notified {
		t.Error("expected final client notification")
	}
}

func TestAttemptsExhaustAfterMax(t *testing.T) {
	o := newTestOrchestrator(t)
	id, _ := o.Create("s1")

	configs := map[Category]Config{
		STT: {Strategy: RetryImmediate, MaxAttempts: 2},
	}
	c := New(o, configs, nil, nil)
	defer c.Close()

	if !c.Attempt(id, STT, errors.New("e1")) {
		t.Fatal("attempt 1 should dispatch")
	}
	if !c.Attempt(id, STT, errors.New("e2")) {
		t.Fatal("attempt 2 should dispatch")
	}
	if c.Attempt(id, STT, errors.New("e3")) {
		t.Fatal("attempt 3 should be exhausted")
	}
}

func TestUnknownCategoryReturnsFalse(t *testing.T) {
	o := newTestOrchestrator(t)
	id, _ := o.Create("s1")

	c := New(o, map[Category]Config{}, nil, nil)
	defer c.Close()

	if c.Attempt(id, STT, errors.New("x")) {
		t.Fatal("expected no configured recovery for empty config map")
	}
}

func TestCalculateDelayBacksOffAndCaps(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, ExponentialBackoff: true}
	d1 := calculateDelay(cfg, 1)
	d3 := calculateDelay(cfg, 5)

	if d1 < 75*time.Millisecond || d1 > 125*time.Millisecond {
		t.Errorf("expected first attempt delay near base with jitter, got %v", d1)
	}
	if d3 > cfg.MaxDelay {
		t.Errorf("expected delay capped at %v, got %v", cfg.MaxDelay, d3)
	}
}

func TestRetryWithDelaySchedulesAndEventuallyRuns(t *testing.T) {
	o := newTestOrchestrator(t)
	id, _ := o.Create("s1")

	configs := map[Category]Config{
		STT: {Strategy: RetryWithDelay, MaxAttempts: 1, BaseDelay: 20 * time.Millisecond},
	}
	c := New(o, configs, nil, nil)
	defer c.Close()

	if !c.Attempt(id, STT, errors.New("boom")) {
		t.Fatal("expected scheduled retry to report dispatched")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		u, _ := o.Get(id)
		if u.State == orchestrator.Complete {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected delayed retry to eventually run and complete")
}
