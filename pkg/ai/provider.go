// Package ai abstracts the LLM backends used by the planner and the local
// agent executor.
package ai

import (
	"context"
	"fmt"
	"os"
)

// CompletionRequest represents a prompt to the model.
type CompletionRequest struct {
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
}

// CompletionResponse represents the model's answer.
type CompletionResponse struct {
	Text  string
	Usage TokenUsage
	Model string
}

// TokenUsage tracks costs.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Provider is the interface for all model backends.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// NewProvider resolves a named backend. API keys come from the conventional
// environment variables; the returned provider is wrapped for resilience.
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "anthropic":
		return NewResilientProvider(NewAnthropicProvider(model, os.Getenv("ANTHROPIC_API_KEY"))), nil
	case "openai":
		return NewResilientProvider(NewOpenAIProvider(model, os.Getenv("OPENAI_API_KEY"))), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", name)
	}
}
