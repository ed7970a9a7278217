package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature *float32 `json:"temperature"`
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func TestCompleter_Complete(t *testing.T) {
	var got chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("The answer [source 1]."))
	}))
	defer server.Close()

	c := NewCompleter(CompleterConfig{APIKey: "test-key", BaseURL: server.URL})
	text, err := c.Complete(context.Background(), "system rules", "the question", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "The answer [source 1]." {
		t.Errorf("unexpected answer: %q", text)
	}

	if got.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model: %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
	if got.Temperature == nil {
		t.Fatal("temperature must be sent explicitly")
	}
	if *got.Temperature > 1e-6 {
		t.Errorf("temperature must be effectively zero, got %v", *got.Temperature)
	}
}

func TestCompleter_TimeoutBoundsCall(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-block:
		}
	}))
	defer server.Close()
	defer close(block)

	c := NewCompleter(CompleterConfig{APIKey: "k", BaseURL: server.URL, TimeoutSec: 30})
	c.timeout = 50 * time.Millisecond // shrink the configured deadline for the test

	_, err := c.Complete(context.Background(), "s", "u", "gpt-4o-mini")
	if !errors.Is(err, domain.ErrCompletionProvider) {
		t.Fatalf("expected ErrCompletionProvider, got: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) &&
		!strings.Contains(err.Error(), context.DeadlineExceeded.Error()) {
		t.Errorf("expected a deadline error, got: %v", err)
	}
}

func TestCompleter_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key", "type": "auth"}}`))
	}))
	defer server.Close()

	c := NewCompleter(CompleterConfig{APIKey: "bad", BaseURL: server.URL})
	_, err := c.Complete(context.Background(), "s", "u", "gpt-4o-mini")
	if !errors.Is(err, domain.ErrCompletionProvider) {
		t.Fatalf("expected ErrCompletionProvider, got: %v", err)
	}
}

func TestCompleter_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-test", "object": "chat.completion", "choices": []any{},
		})
	}))
	defer server.Close()

	c := NewCompleter(CompleterConfig{APIKey: "k", BaseURL: server.URL})
	_, err := c.Complete(context.Background(), "s", "u", "gpt-4o-mini")
	if !errors.Is(err, domain.ErrCompletionProvider) {
		t.Fatalf("expected ErrCompletionProvider, got: %v", err)
	}
}
