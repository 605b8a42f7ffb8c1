// Package mt provides a reference machine-translation engine adapter
// repurposing a chat-completions-shaped HTTP endpoint to translate
// text, in the teacher's raw net/http style.
package mt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lokutor-ai/lokutor-relay/pkg/engine"
)

// ChatTranslator asks an Anthropic-messages-shaped endpoint to
// translate text between a fixed source/target language pair per
// Initialize call.
type ChatTranslator struct {
	apiKey string
	url    string
	model  string
	client *http.Client

	source, target string
	ready          bool
}

// New constructs a ChatTranslator. An empty model defaults to a
// Claude 3.5 Sonnet-shaped model id.
func New(apiKey, model string) *ChatTranslator {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &ChatTranslator{
		apiKey: apiKey,
		url:    "https://api.anthropic.com/v1/messages",
		model:  model,
		client: http.DefaultClient,
	}
}

func (t *ChatTranslator) Name() string        { return "chat_translator" }
func (t *ChatTranslator) IsInitialized() bool { return t.ready }

// Supports reports whether a source/target pair can be initialized;
// this adapter accepts any non-empty pair.
func (t *ChatTranslator) Supports(source, target string) bool {
	return source != "" && target != ""
}

// Initialize fixes the language pair used by subsequent Translate calls.
func (t *ChatTranslator) Initialize(ctx context.Context, source, target string) error {
	if source == "" || target == "" {
		return fmt.Errorf("mt: source and target languages are required")
	}
	t.source, t.target = source, target
	t.ready = true
	return nil
}

// Translate sends text to the chat endpoint with an instruction to
// translate it, and returns the model's reply as the translation.
func (t *ChatTranslator) Translate(ctx context.Context, text string) (engine.TranslationResult, error) {
	if !t.ready {
		return engine.TranslationResult{}, fmt.Errorf("mt: not initialized")
	}

	system := fmt.Sprintf(
		"Translate the user's message from %s to %s. Reply with only the translation, no commentary.",
		t.source, t.target,
	)
	payload := map[string]any{
		"model":      t.model,
		"system":     system,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": text},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return engine.TranslationResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return engine.TranslationResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", t.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := t.client.Do(req)
	if err != nil {
		return engine.TranslationResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return engine.TranslationResult{}, fmt.Errorf("mt endpoint error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return engine.TranslationResult{}, err
	}
	if len(result.Content) == 0 {
		return engine.TranslationResult{}, fmt.Errorf("mt: empty response")
	}

	return engine.TranslationResult{Text: result.Content[0].Text, Confidence: 0.8}, nil
}

var _ engine.MT = (*ChatTranslator)(nil)
