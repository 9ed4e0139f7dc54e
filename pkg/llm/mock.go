package llm

import (
	"context"
)

// MockChatClient is a configurable mock for testing AI-backed functionality.
// Set the function fields to control behavior in tests.
type MockChatClient struct {
	// GenerateResponseFunc is called when GenerateResponse is invoked.
	// If nil, returns empty string and nil error.
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64, maxTokens int) (string, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Call tracking for verification
	GenerateResponseCalls int
	LastPrompt            string
	LastSystemMessage     string
	LastTemperature       float64
	LastMaxTokens         int
}

// NewMockChatClient creates a new mock with sensible defaults.
func NewMockChatClient() *MockChatClient {
	return &MockChatClient{
		Model: "mock-model",
	}
}

// GenerateResponse implements ChatClient.
func (m *MockChatClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64, maxTokens int) (string, error) {
	m.GenerateResponseCalls++
	m.LastPrompt = prompt
	m.LastSystemMessage = systemMessage
	m.LastTemperature = temperature
	m.LastMaxTokens = maxTokens
	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, systemMessage, temperature, maxTokens)
	}
	return "", nil
}

// GetModel implements ChatClient.
func (m *MockChatClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// Reset clears call tracking counters.
func (m *MockChatClient) Reset() {
	m.GenerateResponseCalls = 0
	m.LastPrompt = ""
	m.LastSystemMessage = ""
	m.LastTemperature = 0
	m.LastMaxTokens = 0
}

// Ensure MockChatClient implements ChatClient at compile time.
var _ ChatClient = (*MockChatClient)(nil)
