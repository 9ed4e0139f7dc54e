package llm

import (
	"context"
)

// ChatClient defines the interface for LLM chat operations.
// Use this interface for dependency injection to enable mocking in tests.
type ChatClient interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64, maxTokens int) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Ensure Client implements ChatClient at compile time.
var _ ChatClient = (*Client)(nil)
