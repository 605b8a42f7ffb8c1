// Package recovery maps pipeline error categories to recovery
// strategies and drives an utterance back into a running state (or
// declares it permanently failed) without the orchestrator needing to
// know anything about recovery policy.
package recovery

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lokutor-ai/lokutor-relay/pkg/logging"
	"github.com/lokutor-ai/lokutor-relay/pkg/orchestrator"
)

// Category is the error taxonomy stages report failures under. It is an
// alias for orchestrator.ErrorCategory: the orchestrator classifies its
// own stage failures and offers them to a recovery hook at the
// construction-time boundary, so the two packages share one taxonomy
// without the orchestrator importing recovery.
type Category = orchestrator.ErrorCategory

const (
	Websocket       = orchestrator.CategoryWebsocket
	AudioProcessing = orchestrator.CategoryAudioProcessing
	STT             = orchestrator.CategorySTT
	Translation     = orchestrator.CategoryTranslation
	TTS             = orchestrator.CategoryTTS
	ModelLoading    = orchestrator.CategoryModelLoading
	Pipeline        = orchestrator.CategoryPipeline
	System          = orchestrator.CategorySystem
)

// Strategy is one of the original source's six recovery strategies,
// plus NONE for categories with no configured recovery.
type Strategy int

const (
	None Strategy = iota
	RetryImmediate
	RetryWithDelay
	FallbackModel
	SkipStage
	RestartPipeline
	NotifyClientOnly
)

// Config is one category's recovery policy.
type Config struct {
	Strategy           Strategy
	MaxAttempts        int
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	ExponentialBackoff bool
	FallbackModelPath  string
	CustomAction       ActionFunc
}

// ActionFunc is a canned recovery action, matching the shape of the
// original source's RecoveryActionFactory-produced callbacks.
type ActionFunc func() error

// DefaultConfigs mirrors the original source's per-category defaults.
func DefaultConfigs() map[Category]Config {
	return map[Category]Config{
		STT:             {Strategy: RetryWithDelay, MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, ExponentialBackoff: true},
		Translation:     {Strategy: RetryWithDelay, MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, ExponentialBackoff: true},
		TTS:             {Strategy: RetryWithDelay, MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, ExponentialBackoff: true},
		AudioProcessing: {Strategy: RetryImmediate, MaxAttempts: 2, BaseDelay: 100 * time.Millisecond},
		ModelLoading:    {Strategy: FallbackModel, MaxAttempts: 1},
		Pipeline:        {Strategy: RestartPipeline, MaxAttempts: 2},
		Websocket:       {Strategy: NotifyClientOnly},
	}
}

// stageForCategory maps a failing category back to the orchestrator
// stage a retry or skip should target.
func stageForCategory(c Category) orchestrator.State {
	switch c {
	case STT, AudioProcessing:
		return orchestrator.Transcribing
	case Translation:
		return orchestrator.Translating
	case TTS:
		return orchestrator.Synthesizing
	default:
		return orchestrator.Transcribing
	}
}

// Attempt tracks bookkeeping for one (utterance, category) recovery in
// progress, matching the original source's RecoveryAttempt.
type Attempt struct {
	UtteranceID  uint64
	Category     Category
	AttemptCount int
	LastAttempt  time.Time
}

// Stats summarizes the controller's lifetime activity.
type Stats struct {
	TotalAttempts     uint64
	Successes         uint64
	Failures          uint64
	PerCategoryCounts map[Category]uint64
}

// NotifyFunc delivers a client-facing recovery status message, matching
// the original source's notifyClientRecoveryStatus.
type NotifyFunc func(utteranceID uint64, message string, final bool)

// Controller holds a pointer to the orchestrator and drives utterances
// only through its recovery-facing mutation methods (plus Get); the
// orchestrator never references this package,
// breaking the cyclic reference the original source modeled directly.
type Controller struct {
	orch *orchestrator.Orchestrator
	log  logging.Logger

	mu      sync.Mutex
	configs map[Category]Config
	attempt map[attemptKey]*Attempt

	notify NotifyFunc

	scheduler *scheduler

	totalAttempts atomic.Uint64
	successes     atomic.Uint64
	failures      atomic.Uint64
	perCategory   map[Category]*atomic.Uint64
}

type attemptKey struct {
	utteranceID uint64
	category    Category
}

// New constructs a Controller bound to an orchestrator. Call Close to
// stop its delayed-recovery scheduler.
func New(orch *orchestrator.Orchestrator, configs map[Category]Config, notify NotifyFunc, log logging.Logger) *Controller {
	if configs == nil {
		configs = DefaultConfigs()
	}
	if log == nil {
		log = logging.NoOpLogger{}
	}
	c := &Controller{
		orch:        orch,
		log:         log,
		configs:     configs,
		attempt:     make(map[attemptKey]*Attempt),
		notify:      notify,
		perCategory: make(map[Category]*atomic.Uint64),
	}
	c.scheduler = newScheduler(log)
	return c
}

// IsRecovering reports whether an (utterance, category) pair has an
// in-progress recovery record.
func (c *Controller) IsRecovering(utteranceID uint64, category Category) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.attempt[attemptKey{utteranceID, category}]
	return ok
}

// Attempt processes one failure for an utterance under the given
// category, dispatching to the configured strategy. It returns true if
// a recovery action was taken (successfully or as a scheduled retry),
// false if the category has no configured recovery or attempts are
// exhausted. A MaxAttempts of 0 exhausts on the first failure; the
// NOTIFY_CLIENT_ONLY strategy is not limited by MaxAttempts.
func (c *Controller) Attempt(utteranceID uint64, category Category, cause error) bool {
	c.mu.Lock()
	cfg, ok := c.configs[category]
	if !ok || cfg.Strategy == None {
		c.mu.Unlock()
		return false
	}

	key := attemptKey{utteranceID, category}
	a, exists := c.attempt[key]
	if !exists {
		a = &Attempt{UtteranceID: utteranceID, Category: category}
		c.attempt[key] = a
	}

	if cfg.Strategy != NotifyClientOnly && a.AttemptCount >= cfg.MaxAttempts {
		delete(c.attempt, key)
		c.mu.Unlock()
		c.recordFailure(category)
		if c.notify != nil {
			c.notify(utteranceID, finalFailureMessage(cause), true)
		}
		return false
	}

	a.AttemptCount++
	a.LastAttempt = time.Now()
	attemptCount := a.AttemptCount
	c.mu.Unlock()

	c.recordAttempt(category)
	ok = c.dispatch(utteranceID, category, cfg, attemptCount, cause)
	if ok {
		c.recordSuccess(category)
	} else {
		c.recordFailure(category)
	}
	return ok
}

func (c *Controller) dispatch(utteranceID uint64, category Category, cfg Config, attemptCount int, cause error) bool {
	stage := stageForCategory(category)

	switch cfg.Strategy {
	case RetryImmediate:
		return c.orch.RetryStage(utteranceID, stage) == nil

	case RetryWithDelay:
		delay := calculateDelay(cfg, attemptCount)
		c.scheduler.schedule(delay, func() {
			c.orch.RetryStage(utteranceID, stage)
		})
		return true

	case FallbackModel:
		if cfg.FallbackModelPath == "" {
			return false
		}
		if cfg.CustomAction != nil {
			if err := cfg.CustomAction(); err != nil {
				c.log.Warn("fallback model action failed", "error", err)
				return false
			}
		}
		return c.orch.RetryStage(utteranceID, stage) == nil

	case SkipStage:
		return c.orch.SkipStage(utteranceID, stage) == nil

	case RestartPipeline:
		return c.orch.RestartPipeline(utteranceID) == nil

	case NotifyClientOnly:
		if c.notify != nil {
			c.notify(utteranceID, cause.Error(), false)
		}
		return true

	default:
		return false
	}
}

// calculateDelay applies exponential backoff with +/-25% jitter, capped
// at MaxDelay, matching the original source's calculateRetryDelay.
func calculateDelay(cfg Config, attemptCount int) time.Duration {
	if !cfg.ExponentialBackoff {
		return cfg.BaseDelay
	}
	delay := cfg.BaseDelay
	for i := 1; i < attemptCount; i++ {
		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	jitter := 0.75 + rand.Float64()*0.5
	delay = time.Duration(float64(delay) * jitter)
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

func finalFailureMessage(cause error) string {
	if cause == nil {
		return "recovery exhausted"
	}
	return "recovery exhausted: " + cause.Error()
}

// Stats reports the controller's lifetime counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	perCat := make(map[Category]uint64, len(c.perCategory))
	for cat, v := range c.perCategory {
		perCat[cat] = v.Load()
	}
	c.mu.Unlock()
	return Stats{
		TotalAttempts:     c.totalAttempts.Load(),
		Successes:         c.successes.Load(),
		Failures:          c.failures.Load(),
		PerCategoryCounts: perCat,
	}
}

func (c *Controller) recordAttempt(cat Category) {
	c.totalAttempts.Add(1)
	c.categoryCounter(cat).Add(1)
}
func (c *Controller) recordSuccess(cat Category) { c.successes.Add(1) }
func (c *Controller) recordFailure(cat Category) { c.failures.Add(1) }

func (c *Controller) categoryCounter(cat Category) *atomic.Uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.perCategory[cat]
	if !ok {
		v = &atomic.Uint64{}
		c.perCategory[cat] = v
	}
	return v
}

// CleanupCompleted drops any attempt records whose utterance is no
// longer tracked by the orchestrator (it was removed or cleaned up).
// Records of finished utterances still held by the orchestrator stay.
func (c *Controller) CleanupCompleted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.attempt {
		if _, ok := c.orch.Get(key.utteranceID); !ok {
			delete(c.attempt, key)
			removed++
		}
	}
	return removed
}

// Close stops the delayed-recovery scheduler.
func (c *Controller) Close() {
	c.scheduler.close()
}
