// Package ai provides the pluggable LLM backend used by the insight and task
// plan features. A backend is one of OpenRouter, OpenAI or Ollama, or the
// deterministic stub when nothing is configured.
package ai

import (
	"context"
)

// Role is a chat message role.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a single chat message submitted to a backend.
type Message struct {
	Role    Role
	Content string
}

// Client is the capability interface every backend implements.
type Client interface {
	// Name identifies the backend, e.g. "openai:gpt-4o-mini" or "stub".
	Name() string
	// Chat submits the messages and returns the model's reply. Failures
	// wrap model.ErrBackend.
	Chat(ctx context.Context, messages []Message) (string, error)
}

// StubName is the name reported by the null-object backend.
const StubName = "stub"

// IsStub returns whether the client is the null-object fallback.
func IsStub(c Client) bool { return c != nil && c.Name() == StubName }
