package orchestrator

import "errors"

var (
	// ErrUnknownUtterance is returned when an operation names an id the
	// orchestrator has no record of.
	ErrUnknownUtterance = errors.New("orchestrator: unknown utterance")

	// ErrAtCapacity is returned by Create when active utterances are
	// already at the configured cap.
	ErrAtCapacity = errors.New("orchestrator: at capacity")

	// ErrInvalidTransition is returned when an operation is attempted
	// against an utterance in a state that does not permit it.
	ErrInvalidTransition = errors.New("orchestrator: invalid state transition")

	// ErrEngineNotReady reports that no usable engine is configured for
	// a stage. The stage runners do not return it: a stage without a
	// usable engine falls back to simulated output instead.
	ErrEngineNotReady = errors.New("orchestrator: engine not ready")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("orchestrator: closed")
)
