// Package orchestrator drives utterances through transcription,
// translation, and synthesis. It is the core of the relay: a
// concurrent state machine with bounded admission, callback delivery
// outside any internal lock, and periodic cleanup of finished work.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lokutor-ai/lokutor-relay/pkg/engine"
	"github.com/lokutor-ai/lokutor-relay/pkg/logging"
	"github.com/lokutor-ai/lokutor-relay/pkg/queue"
	"golang.org/x/sync/semaphore"
)

// Orchestrator owns every utterance's lifecycle. Zero value is not
// usable; construct with New.
type Orchestrator struct {
	cfg Config
	log logging.Logger

	q    *queue.Queue
	pool *queue.Pool

	admission *semaphore.Weighted

	stt atomic.Pointer[engine.STT]
	mt  atomic.Pointer[engine.MT]
	tts atomic.Pointer[engine.TTS]

	mu         sync.RWMutex
	utterances map[uint64]*Utterance
	nextID     atomic.Uint64

	cbMu        sync.RWMutex
	onState     StateChangeCallback
	onComplete  CompleteCallback
	onErrorFunc ErrorCallback

	recoveryHook atomic.Pointer[RecoveryHook]

	totalCreated   atomic.Uint64
	totalCompleted atomic.Uint64
	totalErrors    atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
	cleanupWG sync.WaitGroup
	stopCh    chan struct{}
}

// New constructs an Orchestrator, starting its worker pool and (if
// enabled) its cleanup goroutine.
func New(cfg Config, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	o := &Orchestrator{
		cfg:        cfg,
		log:        log,
		q:          queue.New(128),
		admission:  semaphore.NewWeighted(int64(cfg.MaxConcurrentUtterances)),
		utterances: make(map[uint64]*Utterance),
		stopCh:     make(chan struct{}),
	}
	o.pool = queue.NewPool(o.q, queue.DefaultWorkers, log)

	if cfg.EnableAutomaticCleanup {
		o.cleanupWG.Add(1)
		go o.cleanupLoop()
	}
	return o
}

// SetSTTEngine, SetMTEngine, SetTTSEngine hot-swap the engine used for
// work submitted after the call; in-flight calls finish against the
// engine loaded when they started.
func (o *Orchestrator) SetSTTEngine(e engine.STT) { o.stt.Store(&e) }
func (o *Orchestrator) SetMTEngine(e engine.MT)   { o.mt.Store(&e) }
func (o *Orchestrator) SetTTSEngine(e engine.TTS) { o.tts.Store(&e) }

// OnStateChange, OnComplete, OnError register the single callback of
// each shape. Calling again replaces the previous one.
func (o *Orchestrator) OnStateChange(cb StateChangeCallback) {
	o.cbMu.Lock()
	o.onState = cb
	o.cbMu.Unlock()
}

func (o *Orchestrator) OnComplete(cb CompleteCallback) {
	o.cbMu.Lock()
	o.onComplete = cb
	o.cbMu.Unlock()
}

func (o *Orchestrator) OnError(cb ErrorCallback) {
	o.cbMu.Lock()
	o.onErrorFunc = cb
	o.cbMu.Unlock()
}

// SetRecoveryHook installs the function a recovery controller supplies
// at construction. The orchestrator consults it on every stage failure
// before declaring an utterance terminally ERROR. Passing nil restores
// the default behavior of failing immediately.
func (o *Orchestrator) SetRecoveryHook(hook RecoveryHook) {
	if hook == nil {
		o.recoveryHook.Store(nil)
		return
	}
	o.recoveryHook.Store(&hook)
}

// Create allocates a new utterance in LISTENING if under the
// concurrency cap, otherwise fails fast without blocking.
func (o *Orchestrator) Create(sessionID string) (uint64, error) {
	if o.closed.Load() {
		return 0, ErrClosed
	}
	if !o.admission.TryAcquire(1) {
		return 0, ErrAtCapacity
	}

	id := o.nextID.Add(1)
	now := time.Now()
	u := &Utterance{
		ID:          id,
		SessionID:   sessionID,
		State:       Listening,
		CreatedAt:   now,
		LastUpdated: now,
	}

	o.mu.Lock()
	o.utterances[id] = u
	o.mu.Unlock()

	o.totalCreated.Add(1)
	o.fireStateChange(u.Snapshot(), Listening, Listening)
	return id, nil
}

// AddAudio appends samples to an utterance's buffer. A no-op for
// unknown ids or utterances that have already finished.
func (o *Orchestrator) AddAudio(id uint64, samples []float32) error {
	o.mu.Lock()
	u, ok := o.utterances[id]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownUtterance
	}
	if u.State == Complete || u.State == Error {
		o.mu.Unlock()
		return nil
	}
	u.AudioBuffer = append(u.AudioBuffer, samples...)
	u.LastUpdated = time.Now()
	o.mu.Unlock()
	return nil
}

// SetLanguageConfig is only honored while the utterance is LISTENING.
func (o *Orchestrator) SetLanguageConfig(id uint64, source, target, voice string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	u, ok := o.utterances[id]
	if !ok {
		return ErrUnknownUtterance
	}
	if u.State != Listening {
		return nil
	}
	u.SourceLanguage = source
	u.TargetLanguage = target
	u.VoiceID = voice
	return nil
}

// Process kicks off the STT stage if the utterance is still LISTENING.
func (o *Orchestrator) Process(id uint64) error {
	o.mu.Lock()
	u, ok := o.utterances[id]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownUtterance
	}
	if u.State != Listening {
		o.mu.Unlock()
		return nil
	}
	from := u.State
	o.transitionLocked(u, Transcribing)
	snap := u.Snapshot()
	o.mu.Unlock()

	o.fireStateChange(snap, from, Transcribing)
	return o.enqueueStage(id, Transcribing)
}

func (o *Orchestrator) enqueueStage(id uint64, stage State) error {
	priority := queue.High
	return o.q.Submit(priority, func() {
		o.runStage(id, stage)
	})
}

// transitionLocked must be called with o.mu held. It updates state and
// timestamp but does not fire callbacks (callbacks fire after unlock).
func (o *Orchestrator) transitionLocked(u *Utterance, to State) {
	u.State = to
	u.LastUpdated = time.Now()
}

func (o *Orchestrator) fireStateChange(u Utterance, from, to State) {
	o.cbMu.RLock()
	cb := o.onState
	o.cbMu.RUnlock()
	if cb == nil {
		return
	}
	o.safeCall(func() { cb(u, from, to) })
}

func (o *Orchestrator) fireComplete(u Utterance) {
	o.cbMu.RLock()
	cb := o.onComplete
	o.cbMu.RUnlock()
	if cb == nil {
		return
	}
	o.safeCall(func() { cb(u) })
}

func (o *Orchestrator) fireError(u Utterance, msg string) {
	o.cbMu.RLock()
	cb := o.onErrorFunc
	o.cbMu.RUnlock()
	if cb == nil {
		return
	}
	o.safeCall(func() { cb(u, msg) })
}

func (o *Orchestrator) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("callback panicked", "recover", r)
		}
	}()
	fn()
}

// runStage executes one pipeline stage for an utterance and advances
// (or fails) its state machine. It never holds o.mu across an engine
// call.
func (o *Orchestrator) runStage(id uint64, stage State) {
	ctx := context.Background()

	switch stage {
	case Transcribing:
		o.runTranscribe(ctx, id)
	case Translating:
		o.runTranslate(ctx, id)
	case Synthesizing:
		o.runSynthesize(ctx, id)
	}
}

func (o *Orchestrator) snapshot(id uint64) (*Utterance, Utterance, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	u, ok := o.utterances[id]
	if !ok {
		return nil, Utterance{}, false
	}
	return u, u.Snapshot(), true
}

func (o *Orchestrator) runTranscribe(ctx context.Context, id uint64) {
	u, before, ok := o.snapshot(id)
	if !ok {
		return
	}

	sttPtr := o.stt.Load()
	var result engine.TranscriptionResult
	var err error
	switch {
	case sttPtr == nil || !(*sttPtr).IsInitialized() || len(before.AudioBuffer) == 0:
		result = engine.TranscriptionResult{Text: "[simulated transcript]", Confidence: 0.85}
	default:
		result, err = (*sttPtr).Transcribe(ctx, before.AudioBuffer, before.SourceLanguage)
		if err != nil {
			result = engine.TranscriptionResult{Text: "[simulated transcript]", Confidence: 0.85}
		}
	}

	o.mu.Lock()
	u.Transcript = result.Text
	u.TranscriptConfidence = result.Confidence
	from := u.State
	o.transitionLocked(u, Translating)
	snap := u.Snapshot()
	o.mu.Unlock()

	o.fireStateChange(snap, from, Translating)
	o.enqueueStage(id, Translating)
}

func (o *Orchestrator) runTranslate(ctx context.Context, id uint64) {
	u, before, ok := o.snapshot(id)
	if !ok {
		return
	}

	mtPtr := o.mt.Load()
	useSimulation := before.SourceLanguage == "" || before.TargetLanguage == "" ||
		mtPtr == nil || !(*mtPtr).Supports(before.SourceLanguage, before.TargetLanguage)

	var result engine.TranslationResult
	var err error
	if useSimulation {
		result = engine.TranslationResult{Text: before.Transcript, Confidence: 0.5}
	} else {
		m := *mtPtr
		if !m.IsInitialized() {
			if ierr := m.Initialize(ctx, before.SourceLanguage, before.TargetLanguage); ierr != nil {
				err = ierr
			}
		}
		if err == nil {
			result, err = m.Translate(ctx, before.Transcript)
		}
	}

	if err != nil {
		o.failUtterance(id, CategoryTranslation, err)
		return
	}

	o.mu.Lock()
	u.Translation = result.Text
	from := u.State
	o.transitionLocked(u, Synthesizing)
	snap := u.Snapshot()
	o.mu.Unlock()

	o.fireStateChange(snap, from, Synthesizing)
	o.enqueueStage(id, Synthesizing)
}

func (o *Orchestrator) runSynthesize(ctx context.Context, id uint64) {
	u, before, ok := o.snapshot(id)
	if !ok {
		return
	}

	ttsPtr := o.tts.Load()
	var result engine.SynthesisResult
	var err error
	if ttsPtr == nil || !(*ttsPtr).IsInitialized() {
		result = engine.SynthesisResult{Audio: []byte(before.Translation)}
	} else {
		t := *ttsPtr
		voice := before.VoiceID
		if voice == "" {
			voice = t.DefaultVoice()
		} else {
			found := false
			for _, v := range t.AvailableVoices() {
				if v == voice {
					found = true
					break
				}
			}
			if !found {
				voice = t.DefaultVoice()
			}
		}
		result, err = t.Synthesize(ctx, before.Translation, voice)
	}

	if err != nil {
		o.failUtterance(id, CategoryTTS, err)
		return
	}

	o.mu.Lock()
	u.SynthesizedAudio = result.Audio
	from := u.State
	o.transitionLocked(u, Complete)
	o.releaseAdmissionLocked(u)
	snap := u.Snapshot()
	o.mu.Unlock()

	o.totalCompleted.Add(1)
	o.fireStateChange(snap, from, Complete)
	o.fireComplete(snap)
}

// releaseAdmissionLocked frees an utterance's admission slot. Must be
// called with o.mu held. Safe to call more than once per utterance; the
// slot is only released the first time, since semaphore.Weighted panics
// on an unbalanced Release.
func (o *Orchestrator) releaseAdmissionLocked(u *Utterance) {
	if u.admissionReleased {
		return
	}
	u.admissionReleased = true
	o.admission.Release(1)
}

// failUtterance handles a stage failure. It first offers the failure to
// the recovery hook, if one is installed; only when recovery declines
// or has exhausted its attempts does the utterance become terminally
// ERROR and fire onError. This keeps onError firing at most once per
// utterance even across several retried failures.
func (o *Orchestrator) failUtterance(id uint64, category ErrorCategory, cause error) {
	if hookPtr := o.recoveryHook.Load(); hookPtr != nil {
		hook := *hookPtr
		if hook(id, category, cause) {
			return
		}
	}

	message := cause.Error()

	o.mu.Lock()
	u, ok := o.utterances[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	from := u.State
	u.ErrorMessage = message
	o.transitionLocked(u, Error)
	o.releaseAdmissionLocked(u)
	snap := u.Snapshot()
	o.mu.Unlock()

	o.totalErrors.Add(1)
	o.fireStateChange(snap, from, Error)
	o.fireError(snap, message)
}

// --- Recovery-facing mutation surface ---
//
// The recovery controller holds a reference to the Orchestrator through
// these methods only; the Orchestrator never imports the recovery
// package, breaking the cycle the original source modeled as a
// bidirectional reference between recovery and the utterance manager.

// RetryStage moves an utterance back into stage and re-enqueues it,
// clearing any prior error.
func (o *Orchestrator) RetryStage(id uint64, stage State) error {
	o.mu.Lock()
	u, ok := o.utterances[id]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownUtterance
	}
	u.ErrorMessage = ""
	from := u.State
	o.transitionLocked(u, stage)
	snap := u.Snapshot()
	o.mu.Unlock()

	o.fireStateChange(snap, from, stage)
	return o.enqueueStage(id, stage)
}

// SkipStage bypasses a failed stage with a placeholder value and
// advances to the next one, per the SKIP_STAGE recovery strategy.
func (o *Orchestrator) SkipStage(id uint64, stage State) error {
	o.mu.Lock()
	u, ok := o.utterances[id]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownUtterance
	}
	from := u.State
	u.ErrorMessage = ""

	var to State
	switch stage {
	case Transcribing:
		u.Transcript = "[Transcription unavailable]"
		to = Translating
	case Translating:
		u.Translation = u.Transcript
		to = Synthesizing
	case Synthesizing:
		to = Complete
	default:
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	o.transitionLocked(u, to)
	if to == Complete {
		o.releaseAdmissionLocked(u)
	}
	snap := u.Snapshot()
	o.mu.Unlock()

	o.fireStateChange(snap, from, to)
	if to == Complete {
		o.totalCompleted.Add(1)
		o.fireComplete(snap)
		return nil
	}
	return o.enqueueStage(id, to)
}

// RestartPipeline clears all stage output and re-runs from STT.
func (o *Orchestrator) RestartPipeline(id uint64) error {
	o.mu.Lock()
	u, ok := o.utterances[id]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownUtterance
	}
	u.Transcript = ""
	u.Translation = ""
	u.SynthesizedAudio = nil
	u.ErrorMessage = ""
	from := u.State
	o.transitionLocked(u, Transcribing)
	snap := u.Snapshot()
	o.mu.Unlock()

	o.fireStateChange(snap, from, Transcribing)
	return o.enqueueStage(id, Transcribing)
}

// --- Queries ---

// Get returns a snapshot of an utterance.
func (o *Orchestrator) Get(id uint64) (Utterance, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	u, ok := o.utterances[id]
	if !ok {
		return Utterance{}, false
	}
	return u.Snapshot(), true
}

// SessionUtterances returns every utterance currently tracked for a
// session.
func (o *Orchestrator) SessionUtterances(sessionID string) []Utterance {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []Utterance
	for _, u := range o.utterances {
		if u.SessionID == sessionID {
			out = append(out, u.Snapshot())
		}
	}
	return out
}

// ActiveUtterances returns every utterance not yet in a terminal state.
func (o *Orchestrator) ActiveUtterances() []Utterance {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []Utterance
	for _, u := range o.utterances {
		if u.State != Complete && u.State != Error {
			out = append(out, u.Snapshot())
		}
	}
	return out
}

// RemoveSessionUtterances drops every utterance for a session
// regardless of state, releasing its admission slot.
func (o *Orchestrator) RemoveSessionUtterances(sessionID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	removed := 0
	for id, u := range o.utterances {
		if u.SessionID == sessionID {
			o.releaseAdmissionLocked(u)
			delete(o.utterances, id)
			removed++
		}
	}
	return removed
}

// CleanupOldUtterances removes terminal utterances older than maxAge.
// maxAge <= 0 disables the sweep (no-op, matching CleanupOldUtterances
// called with an effectively infinite age).
func (o *Orchestrator) CleanupOldUtterances(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	now := time.Now()

	o.mu.Lock()
	defer o.mu.Unlock()
	removed := 0
	for id, u := range o.utterances {
		if (u.State == Complete || u.State == Error) && now.Sub(u.LastUpdated) > maxAge {
			o.releaseAdmissionLocked(u)
			delete(o.utterances, id)
			removed++
		}
	}
	return removed
}

func (o *Orchestrator) cleanupLoop() {
	defer o.cleanupWG.Done()
	ticker := time.NewTicker(o.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
			n := o.CleanupOldUtterances(o.cfg.UtteranceTimeout)
			if n > 0 {
				o.log.Debug("cleaned up old utterances", "count", n)
			}
		}
	}
}

// Statistics reports current totals and workload.
func (o *Orchestrator) Statistics() Statistics {
	o.mu.RLock()
	active := 0
	concurrent := 0
	var totalDuration time.Duration
	var completedSeen uint64
	for _, u := range o.utterances {
		if u.State != Complete && u.State != Error {
			active++
		}
		if u.State == Transcribing || u.State == Translating || u.State == Synthesizing {
			concurrent++
		}
		if u.State == Complete {
			totalDuration += u.LastUpdated.Sub(u.CreatedAt)
			completedSeen++
		}
	}
	o.mu.RUnlock()

	var mean time.Duration
	if completedSeen > 0 {
		mean = totalDuration / time.Duration(completedSeen)
	}

	return Statistics{
		TotalCreated:           o.totalCreated.Load(),
		TotalCompleted:         o.totalCompleted.Load(),
		TotalErrors:            o.totalErrors.Load(),
		ActiveCount:            active,
		ConcurrentCount:        concurrent,
		MeanProcessingDuration: mean,
	}
}

// Close stops the cleanup goroutine and the worker pool. Safe to call
// more than once; only the first call has effect.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		close(o.stopCh)
		o.cleanupWG.Wait()
		o.pool.Shutdown()
	})
}
