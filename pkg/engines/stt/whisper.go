// Package stt provides a reference speech-to-text engine adapter over
// raw HTTP, in the teacher's own preferred style (net/http +
// mime/multipart, no vendor SDK).
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/lokutor-ai/lokutor-relay/pkg/audio"
	"github.com/lokutor-ai/lokutor-relay/pkg/engine"
)

// WhisperSTT transcribes audio against a Whisper-compatible HTTP
// endpoint (OpenAI's /v1/audio/transcriptions shape).
type WhisperSTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
	client     *http.Client
}

// New constructs a WhisperSTT. An empty model defaults to "whisper-1".
func New(apiKey, model string) *WhisperSTT {
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperSTT{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/audio/transcriptions",
		model:      model,
		sampleRate: 16000,
		client:     http.DefaultClient,
	}
}

func (s *WhisperSTT) Name() string        { return "whisper_stt" }
func (s *WhisperSTT) IsInitialized() bool { return s.apiKey != "" }

// Transcribe uploads the samples as a WAV file and returns the
// recognized text.
func (s *WhisperSTT) Transcribe(ctx context.Context, samples []float32, language string) (engine.TranscriptionResult, error) {
	pcm := audio.FloatToPCM16(samples)
	wavData := audio.NewWavBuffer(pcm, s.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return engine.TranscriptionResult{}, err
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return engine.TranscriptionResult{}, err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return engine.TranscriptionResult{}, err
	}
	if _, err := part.Write(wavData); err != nil {
		return engine.TranscriptionResult{}, err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return engine.TranscriptionResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return engine.TranscriptionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return engine.TranscriptionResult{}, fmt.Errorf("whisper stt error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return engine.TranscriptionResult{}, err
	}

	return engine.TranscriptionResult{
		Text:             result.Text,
		Confidence:       0.9,
		DetectedLanguage: result.Language,
		MeetsThreshold:   true,
	}, nil
}

var _ engine.STT = (*WhisperSTT)(nil)
