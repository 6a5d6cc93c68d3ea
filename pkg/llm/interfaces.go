// Package llm provides completion clients for the SQL generation pipeline.
package llm

import (
	"context"
)

// CompletionClient defines the interface for completion backends.
// No interpretation of the returned text happens here; callers own
// extraction and validation. Use this interface for dependency injection
// to enable mocking in tests.
type CompletionClient interface {
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Ensure both clients implement CompletionClient at compile time.
var (
	_ CompletionClient = (*OpenAIClient)(nil)
	_ CompletionClient = (*AnthropicClient)(nil)
)
