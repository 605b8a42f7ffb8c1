package audio

import (
	"testing"
	"time"
)

func mkChunk(seq uint64, n int) Chunk {
	samples := make([]float32, n)
	return Chunk{Samples: samples, Timestamp: time.Now(), SequenceNumber: seq}
}

func TestBufferEvictsAtThreshold(t *testing.T) {
	// cap = 100 bytes = 50 samples at 2 bytes/sample
	b := NewBuffer(100)

	if !b.Add(mkChunk(1, 20)) { // 40 bytes
		t.Fatal("expected first add to succeed")
	}
	if !b.Add(mkChunk(2, 20)) { // 80 bytes total
		t.Fatal("expected second add to succeed")
	}
	if !b.Add(mkChunk(3, 11)) { // 22 bytes: would be 102 > cap, triggers eviction to <=75
		t.Fatal("expected third add to succeed via eviction")
	}

	if b.BufferSizeBytes() > 100 {
		t.Errorf("buffer occupancy %d exceeds cap 100", b.BufferSizeBytes())
	}
	if b.ChunkCount() == 0 {
		t.Fatal("expected at least one chunk to remain")
	}
	// oldest chunk (seq 1) should have been evicted
	chunks := b.Chunks()
	if chunks[0].SequenceNumber == 1 {
		t.Errorf("expected oldest chunk to be evicted, still present")
	}
}

func TestBufferRejectsOversizedChunk(t *testing.T) {
	b := NewBuffer(10)
	if b.Add(mkChunk(1, 100)) {
		t.Fatal("expected oversized chunk to be rejected")
	}
}

func TestBufferRecentSamples(t *testing.T) {
	b := NewBuffer(1000)
	b.Add(mkChunk(1, 5))
	b.Add(mkChunk(2, 5))

	if got := len(b.RecentSamples(3)); got != 3 {
		t.Errorf("expected 3 recent samples, got %d", got)
	}
	if got := len(b.RecentSamples(100)); got != 10 {
		t.Errorf("expected all 10 samples when n exceeds total, got %d", got)
	}
}

func TestCleanupOnEmptyBufferIsNoOp(t *testing.T) {
	b := NewBuffer(1000)
	b.Clear()
	if b.ChunkCount() != 0 {
		t.Errorf("expected empty buffer after clear")
	}
}
