package llm

import (
	"context"
)

// MockCompletionClient is a configurable mock for testing completion-driven
// code paths. Set the function field to control behavior in tests; scripted
// responses make the otherwise nondeterministic backend deterministic.
type MockCompletionClient struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, Responses are returned in order instead.
	CompleteFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// Responses are returned in sequence when CompleteFunc is nil.
	// The last response repeats once the sequence is exhausted.
	Responses []string

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	// Call tracking for verification
	CompleteCalls int
	Prompts       []string
}

// NewMockCompletionClient creates a new mock with sensible defaults.
func NewMockCompletionClient(responses ...string) *MockCompletionClient {
	return &MockCompletionClient{
		Responses: responses,
		Model:     "mock-model",
		Endpoint:  "http://mock-endpoint",
	}
}

// Complete implements CompletionClient.
func (m *MockCompletionClient) Complete(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	idx := m.CompleteCalls
	m.CompleteCalls++
	m.Prompts = append(m.Prompts, prompt)

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, systemMessage, temperature)
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// GetModel implements CompletionClient.
func (m *MockCompletionClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements CompletionClient.
func (m *MockCompletionClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Reset clears call tracking.
func (m *MockCompletionClient) Reset() {
	m.CompleteCalls = 0
	m.Prompts = nil
}

// Ensure MockCompletionClient implements CompletionClient at compile time.
var _ CompletionClient = (*MockCompletionClient)(nil)
