package audio

import (
	"sync"
	"time"
)

// Chunk is one timestamped slice of normalized float samples, sequenced
// per session.
type Chunk struct {
	Samples        []float32
	Timestamp      time.Time
	SequenceNumber uint64
}

func (c Chunk) bytes() int {
	return len(c.Samples) * 2 // original 16-bit width, regardless of float storage
}

// Buffer is a bounded FIFO ring of chunks. It never blocks: once the
// byte cap is reached, it evicts the oldest chunks first.
type Buffer struct {
	mu       sync.Mutex
	chunks   []Chunk
	capBytes int
	occBytes int
}

// NewBuffer creates a ring bounded to capBytes of occupancy.
func NewBuffer(capBytes int) *Buffer {
	return &Buffer{capBytes: capBytes}
}

// Add appends a chunk, evicting the oldest chunks first if needed so
// that post-eviction occupancy is at most 75% of the cap, then appends
// the new chunk. If the new chunk alone exceeds the cap, it is rejected;
// it is also rejected if it still does not fit after that eviction, so
// occupancy never exceeds the cap.
func (b *Buffer) Add(c Chunk) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := c.bytes()
	if size > b.capBytes {
		return false
	}

	threshold := (b.capBytes * 75) / 100
	if b.occBytes+size > b.capBytes {
		for b.occBytes > threshold && len(b.chunks) > 0 {
			b.removeOldestLocked()
		}
	}
	if b.occBytes+size > b.capBytes {
		return false
	}

	b.chunks = append(b.chunks, c)
	b.occBytes += size
	return true
}

func (b *Buffer) removeOldestLocked() {
	oldest := b.chunks[0]
	b.chunks = b.chunks[1:]
	b.occBytes -= oldest.bytes()
}

// Chunks returns a copy of all currently buffered chunks, oldest first.
func (b *Buffer) Chunks() []Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Chunk, len(b.chunks))
	copy(out, b.chunks)
	return out
}

// AllSamples concatenates every buffered chunk's samples in order.
func (b *Buffer) AllSamples() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []float32
	for _, c := range b.chunks {
		out = append(out, c.Samples...)
	}
	return out
}

// RecentSamples returns at most the last n samples across all chunks,
// oldest first within the returned window.
func (b *Buffer) RecentSamples(n int) []float32 {
	all := b.AllSamples()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Clear empties the ring.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.occBytes = 0
}

// ChunkCount reports the number of chunks currently buffered.
func (b *Buffer) ChunkCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// TotalSamples reports the number of samples currently buffered.
func (b *Buffer) TotalSamples() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, c := range b.chunks {
		total += len(c.Samples)
	}
	return total
}

// BufferSizeBytes reports current occupancy in bytes.
func (b *Buffer) BufferSizeBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.occBytes
}

// Utilization reports occupancy as a fraction of capacity in [0,1].
func (b *Buffer) Utilization() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capBytes == 0 {
		return 0
	}
	return float64(b.occBytes) / float64(b.capBytes)
}

// OldestTimestamp returns the timestamp of the oldest buffered chunk.
func (b *Buffer) OldestTimestamp() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.chunks) == 0 {
		return time.Time{}, false
	}
	return b.chunks[0].Timestamp, true
}

// NewestTimestamp returns the timestamp of the newest buffered chunk.
func (b *Buffer) NewestTimestamp() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.chunks) == 0 {
		return time.Time{}, false
	}
	return b.chunks[len(b.chunks)-1].Timestamp, true
}

// DurationSeconds estimates buffered audio duration from sample count.
func (b *Buffer) DurationSeconds(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(b.TotalSamples()) / float64(sampleRate)
}
