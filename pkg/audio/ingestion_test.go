package audio

import (
	"encoding/binary"
	"testing"
)

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

func TestManagerRejectsBadFormat(t *testing.T) {
	bad := Format{SampleRate: 16000, Channels: 2, BitsPerSample: 16, ChunkSize: 1024}
	if _, err := NewManager(bad, 1<<20, nil); err == nil {
		t.Fatal("expected error for stereo format")
	}
}

func TestSessionIngestEmptyIsNoOp(t *testing.T) {
	mgr, err := NewManager(DefaultFormat(), 1<<20, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := mgr.Open("sess-1")
	added, code := s.Ingest(nil)
	if added != 0 || code != ErrNone {
		t.Errorf("expected no-op for empty input, got added=%d code=%v", added, code)
	}
}

func TestSessionIngestOddLengthFails(t *testing.T) {
	mgr, _ := NewManager(DefaultFormat(), 1<<20, nil)
	s := mgr.Open("sess-1")
	_, code := s.Ingest([]byte{0x01, 0x02, 0x03})
	if code != ErrCodeInvalidFormat {
		t.Errorf("expected invalid format, got %v", code)
	}
}

func TestSessionIngestExactlyOneChunk(t *testing.T) {
	format := DefaultFormat()
	format.ChunkSize = 4
	mgr, err := NewManager(format, 1<<20, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := mgr.Open("sess-1")

	raw := pcmBytes([]int16{1, 2, 3, 4})
	added, code := s.Ingest(raw)
	if code != ErrNone || added != 1 {
		t.Fatalf("expected 1 chunk ingested, got added=%d code=%v", added, code)
	}
	chunks := s.Buffer().Chunks()
	if len(chunks) != 1 || chunks[0].SequenceNumber != 1 {
		t.Errorf("expected single chunk with sequence 1, got %+v", chunks)
	}
}

func TestSessionIngestInactiveRejected(t *testing.T) {
	mgr, _ := NewManager(DefaultFormat(), 1<<20, nil)
	s := mgr.Open("sess-1")
	s.SetActive(false)

	_, code := s.Ingest(pcmBytes([]int16{1, 2}))
	if code != ErrCodeInactiveSession {
		t.Errorf("expected inactive session error, got %v", code)
	}
}

func TestSessionStatisticsTrackDrops(t *testing.T) {
	format := DefaultFormat()
	format.ChunkSize = 4
	mgr, _ := NewManager(format, 4, nil) // tiny cap: each full 8-byte chunk is oversized and dropped
	s := mgr.Open("sess-1")

	raw := pcmBytes([]int16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	s.Ingest(raw)

	stats := s.Statistics()
	if stats.ChunksIngested == 0 && stats.ChunksDropped == 0 {
		t.Fatal("expected some ingestion activity to be recorded")
	}
	if stats.ChunksDropped != 2 {
		t.Errorf("expected 2 oversized chunks dropped, got %d", stats.ChunksDropped)
	}
}
