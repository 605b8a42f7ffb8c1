package mt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatTranslatorTranslate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		}{Content: []struct {
			Text string `json:"text"`
		}{{Text: "hola mundo"}}})
	}))
	defer server.Close()

	tr := New("test-key", "")
	tr.url = server.URL

	if !tr.Supports("en", "es") {
		t.Fatal("expected support for non-empty pair")
	}
	if err := tr.Initialize(context.Background(), "en", "es"); err != nil {
		t.Fatal(err)
	}
	if !tr.IsInitialized() {
		t.Fatal("expected initialized after Initialize")
	}

	result, err := tr.Translate(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hola mundo" {
		t.Errorf("expected translated text, got %q", result.Text)
	}
}

func TestChatTranslatorRequiresInitialize(t *testing.T) {
	tr := New("test-key", "")
	if _, err := tr.Translate(context.Background(), "hi"); err == nil {
		t.Fatal("expected error before Initialize")
	}
}
