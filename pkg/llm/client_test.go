package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// capturedRequest mirrors the chat completion request fields the tests care about.
type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// newCompletionServer returns a test server that captures the request body
// and replies with a single assistant message.
func newCompletionServer(t *testing.T, content string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   captured.Model,
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(&Config{
		Endpoint: endpoint,
		Model:    "test-model",
		APIKey:   "test-key",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(&Config{Model: "test-model"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("expected error to mention endpoint, got: %v", err)
	}
}

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(&Config{Endpoint: "http://localhost:1234/v1"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for missing model")
	}
	if !strings.Contains(err.Error(), "model") {
		t.Errorf("expected error to mention model, got: %v", err)
	}
}

func TestGenerateResponse_SendsRequestShape(t *testing.T) {
	var captured capturedRequest
	server := newCompletionServer(t, "the dataset looks healthy", &captured)
	defer server.Close()

	client := newTestClient(t, server.URL)

	content, err := client.GenerateResponse(context.Background(), "analyze this", "", 0.3, 1024)
	if err != nil {
		t.Fatalf("GenerateResponse failed: %v", err)
	}
	if content != "the dataset looks healthy" {
		t.Errorf("expected assistant content, got %q", content)
	}

	if captured.Model != "test-model" {
		t.Errorf("expected model test-model, got %s", captured.Model)
	}
	if captured.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", captured.Temperature)
	}
	if captured.MaxTokens != 1024 {
		t.Errorf("expected max_tokens 1024, got %d", captured.MaxTokens)
	}
	// Empty system message means a single user message, no system turn.
	if len(captured.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "user" || captured.Messages[0].Content != "analyze this" {
		t.Errorf("unexpected user message: %+v", captured.Messages[0])
	}
}

func TestGenerateResponse_IncludesSystemMessage(t *testing.T) {
	var captured capturedRequest
	server := newCompletionServer(t, "ok", &captured)
	defer server.Close()

	client := newTestClient(t, server.URL)

	if _, err := client.GenerateResponse(context.Background(), "suggest rules", "You are a data quality analyst.", 0.2, 512); err != nil {
		t.Fatalf("GenerateResponse failed: %v", err)
	}

	if len(captured.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "You are a data quality analyst." {
		t.Errorf("unexpected system message: %+v", captured.Messages[0])
	}
	if captured.Messages[1].Role != "user" {
		t.Errorf("expected second message to be user, got %s", captured.Messages[1].Role)
	}
}

func TestGenerateResponse_AuthErrorClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GenerateResponse(context.Background(), "analyze this", "", 0.3, 1024)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}

	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if llmErr.Type != ErrorTypeAuth {
		t.Errorf("expected type %s, got %s", ErrorTypeAuth, llmErr.Type)
	}
	if llmErr.Retryable {
		t.Error("auth errors should not be retryable")
	}
	if llmErr.Model != "test-model" {
		t.Errorf("expected model context on error, got %q", llmErr.Model)
	}
	if llmErr.Endpoint != server.URL {
		t.Errorf("expected endpoint context on error, got %q", llmErr.Endpoint)
	}
}

func TestGenerateResponse_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-test","object":"chat.completion","choices":[],"usage":{"prompt_tokens":1,"completion_tokens":0,"total_tokens":1}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GenerateResponse(context.Background(), "analyze this", "", 0.3, 1024)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if !strings.Contains(err.Error(), "no choices") {
		t.Errorf("expected 'no choices' error, got: %v", err)
	}
}

func TestGetModelAndEndpoint(t *testing.T) {
	client := newTestClient(t, "http://localhost:9999/v1")
	if client.GetModel() != "test-model" {
		t.Errorf("expected test-model, got %s", client.GetModel())
	}
	if client.GetEndpoint() != "http://localhost:9999/v1" {
		t.Errorf("expected endpoint preserved, got %s", client.GetEndpoint())
	}
}
