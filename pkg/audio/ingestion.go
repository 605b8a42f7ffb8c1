package audio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lokutor-ai/lokutor-relay/pkg/logging"
)

// Statistics reports a session's ingestion counters.
type Statistics struct {
	BytesIngested      uint64
	ChunksIngested     uint64
	ChunksDropped      uint64
	AverageChunkBytes  float64
	BufferUtilization  float64
	LastActivity       time.Time
}

// Session wraps one client's ring buffer and ingestion bookkeeping. It
// is the per-session state described as "Session Ingestion State".
type Session struct {
	id     string
	format Format
	log    logging.Logger

	buf *Buffer

	active int32 // atomic bool

	bytesIngested  atomic.Uint64
	chunksIngested atomic.Uint64
	chunksDropped  atomic.Uint64

	mu           sync.Mutex
	seq          uint64
	lastActivity time.Time
	lastError    ErrorCode
}

// NewSession starts an active ingestion session bounded to capBytes of
// ring occupancy.
func NewSession(id string, format Format, capBytes int, log logging.Logger) *Session {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	s := &Session{
		id:     id,
		format: format,
		log:    log,
		buf:    NewBuffer(capBytes),
		active: 1,
	}
	return s
}

// IsActive reports whether the session still accepts ingestion.
func (s *Session) IsActive() bool {
	return atomic.LoadInt32(&s.active) == 1
}

// SetActive toggles whether the session accepts further ingestion.
func (s *Session) SetActive(active bool) {
	v := int32(0)
	if active {
		v = 1
	}
	atomic.StoreInt32(&s.active, v)
}

// Ingest validates and chunks raw PCM bytes, appending each resulting
// chunk to the session's ring. It never blocks.
func (s *Session) Ingest(raw []byte) (chunksAdded int, code ErrorCode) {
	if !s.IsActive() {
		s.recordError(ErrCodeInactiveSession)
		return 0, ErrCodeInactiveSession
	}
	if len(raw)%2 != 0 {
		s.recordError(ErrCodeInvalidFormat)
		return 0, ErrCodeInvalidFormat
	}
	if len(raw) == 0 {
		s.touch()
		return 0, ErrNone
	}

	chunkBytes := s.format.ChunkSizeBytes()
	if chunkBytes <= 0 {
		chunkBytes = len(raw)
	}

	added := 0
	for off := 0; off < len(raw); off += chunkBytes {
		end := off + chunkBytes
		if end > len(raw) {
			end = len(raw)
		}
		part := raw[off:end]
		samples := PCM16ToFloat(part)

		s.mu.Lock()
		s.seq++
		seq := s.seq
		s.mu.Unlock()

		chunk := Chunk{Samples: samples, Timestamp: time.Now(), SequenceNumber: seq}
		if s.buf.Add(chunk) {
			added++
			s.chunksIngested.Add(1)
			s.bytesIngested.Add(uint64(len(part)))
		} else {
			s.chunksDropped.Add(1)
			s.recordError(ErrCodeBufferFull)
			s.log.Warn("audio chunk dropped: buffer full", "session", s.id)
		}
	}
	s.touch()
	if added == 0 && len(raw) > 0 {
		return 0, ErrCodeBufferFull
	}
	return added, ErrNone
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) recordError(code ErrorCode) {
	s.mu.Lock()
	s.lastError = code
	s.mu.Unlock()
}

// LastError reports the most recent ingestion error code for the session.
func (s *Session) LastError() ErrorCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Buffer exposes the session's ring buffer for reads.
func (s *Session) Buffer() *Buffer {
	return s.buf
}

// Statistics reports the session's running counters.
func (s *Session) Statistics() Statistics {
	chunks := s.chunksIngested.Load()
	bytes := s.bytesIngested.Load()
	var avg float64
	if chunks > 0 {
		avg = float64(bytes) / float64(chunks)
	}
	s.mu.Lock()
	last := s.lastActivity
	s.mu.Unlock()
	return Statistics{
		BytesIngested:     bytes,
		ChunksIngested:    chunks,
		ChunksDropped:     s.chunksDropped.Load(),
		AverageChunkBytes: avg,
		BufferUtilization: s.buf.Utilization(),
		LastActivity:      last,
	}
}

// Manager owns the ingestion sessions for every connected client.
type Manager struct {
	format   Format
	capBytes int
	log      logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager constructs an ingestion manager. It returns an error if the
// format fails validation, since the contract is to fail closed.
func NewManager(format Format, capBytes int, log logging.Logger) (*Manager, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Manager{format: format, capBytes: capBytes, log: log, sessions: make(map[string]*Session)}, nil
}

// Open creates (or replaces) an active session for the given id.
func (m *Manager) Open(sessionID string) *Session {
	s := NewSession(sessionID, m.format, m.capBytes, m.log)
	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()
	return s
}

// Get returns the session for an id, if any.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Close deactivates and drops a session.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.SetActive(false)
		delete(m.sessions, sessionID)
	}
}

// Format reports the format every session is validated against.
func (m *Manager) Format() Format {
	return m.format
}
