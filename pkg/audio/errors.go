package audio

import "errors"

// ErrorCode enumerates why an ingestion call failed, mirroring the
// original source's AudioIngestionManager::ErrorCode.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrCodeInvalidFormat
	ErrCodeBufferFull
	ErrCodeProcessingError
	ErrCodeInactiveSession
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNone:
		return "none"
	case ErrCodeInvalidFormat:
		return "invalid_format"
	case ErrCodeBufferFull:
		return "buffer_full"
	case ErrCodeProcessingError:
		return "processing_error"
	case ErrCodeInactiveSession:
		return "inactive_session"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidFormat = errors.New("audio: invalid format")
	ErrInactive      = errors.New("audio: session is not active")
	ErrBufferFull    = errors.New("audio: buffer full")
)
