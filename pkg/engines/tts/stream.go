// Package tts provides a reference text-to-speech engine adapter over
// a streaming WebSocket connection, adapted from the teacher's own
// coder/websocket + wsjson client.
package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/lokutor-ai/lokutor-relay/pkg/engine"
)

// StreamingTTS synthesizes speech over a persistent WebSocket
// connection, reconnecting lazily on failure.
type StreamingTTS struct {
	apiKey string
	host   string
	scheme string
	voices []string

	mu   sync.Mutex
	conn *websocket.Conn
}

// New constructs a StreamingTTS pointed at host (e.g. "api.example.com").
func New(apiKey, host string) *StreamingTTS {
	return &StreamingTTS{
		apiKey: apiKey,
		host:   host,
		scheme: "wss",
		voices: []string{"voice-1", "voice-2", "voice-3"},
	}
}

func (t *StreamingTTS) Name() string             { return "streaming_tts" }
func (t *StreamingTTS) IsInitialized() bool      { return t.apiKey != "" && t.host != "" }
func (t *StreamingTTS) DefaultVoice() string     { return t.voices[0] }
func (t *StreamingTTS) AvailableVoices() []string { return append([]string(nil), t.voices...) }

func (t *StreamingTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("tts: failed to connect: %w", err)
	}
	t.conn = conn
	return conn, nil
}

// Synthesize buffers a full streamed synthesis into one byte slice.
func (t *StreamingTTS) Synthesize(ctx context.Context, text, voice string) (engine.SynthesisResult, error) {
	var audio []byte
	err := t.StreamSynthesize(ctx, text, voice, func(chunk []byte) error {
		audio = append(audio, chunk...)
		return nil
	})
	if err != nil {
		return engine.SynthesisResult{}, err
	}
	return engine.SynthesisResult{Audio: audio}, nil
}

// StreamSynthesize sends one synthesis request and delivers each
// returned binary frame to onChunk as it arrives.
func (t *StreamingTTS) StreamSynthesize(ctx context.Context, text, voice string, onChunk func([]byte) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]any{
		"text":  text,
		"voice": voice,
		"speed": 1.0,
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("tts: failed to send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("tts: failed to read response: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("tts: %s", msg)
			}
		}
	}
}

// Close releases the underlying connection, if any.
func (t *StreamingTTS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}

var _ engine.TTS = (*StreamingTTS)(nil)
