package interfaces

import (
	"context"
	"errors"
)

// Typed LLM failures. Callers branch on these with errors.Is; the reasoning
// loop converts them into per-turn trace entries rather than crashing a run.
var (
	ErrRateLimited   = errors.New("llm: rate limited")
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService defines the interface for language model completions.
// Implementations may use cloud APIs (Anthropic, Gemini); every call is a
// blocking I/O boundary and honors context cancellation.
type LLMService interface {
	// Chat generates a completion from a full conversation transcript,
	// including system prompts, user messages, and prior assistant turns.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Complete generates a completion for a single prompt with an optional
	// system instruction. Convenience for one-shot analysis calls.
	Complete(ctx context.Context, prompt string, systemPrompt string) (string, error)
}
