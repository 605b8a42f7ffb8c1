// Package audio validates, converts, and buffers the raw PCM streams fed
// into the relay, turning them into timestamped float chunks ready for
// an utterance's audio buffer.
package audio

import "fmt"

// Format describes the PCM layout every session must conform to.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	ChunkSize     int // samples per chunk
}

// DefaultFormat is the relay's standard format: mono 16-bit PCM at
// 16kHz in 1024-sample chunks, matching the original source's
// AudioFormat default. Validate accepts only this layout, with any chunk
// size in (0, 8192].
func DefaultFormat() Format {
	return Format{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
		ChunkSize:     1024,
	}
}

// Validate fails closed on any non-conforming configuration.
func (f Format) Validate() error {
	if f.SampleRate != 16000 {
		return fmt.Errorf("%w: sample rate must be 16000, got %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels != 1 {
		return fmt.Errorf("%w: only mono audio is supported, got %d channels", ErrInvalidFormat, f.Channels)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("%w: only 16-bit PCM is supported, got %d bits", ErrInvalidFormat, f.BitsPerSample)
	}
	if f.ChunkSize <= 0 || f.ChunkSize > 8192 {
		return fmt.Errorf("%w: chunk size must be in (0, 8192], got %d", ErrInvalidFormat, f.ChunkSize)
	}
	return nil
}

// BytesPerSample reports the byte width of one sample.
func (f Format) BytesPerSample() int {
	return f.BitsPerSample / 8
}

// ChunkSizeBytes reports the byte width of one full chunk.
func (f Format) ChunkSizeBytes() int {
	return f.ChunkSize * f.BytesPerSample()
}
