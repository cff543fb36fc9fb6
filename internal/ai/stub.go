package ai

import (
	"context"
	"fmt"
	"unicode/utf8"
)

const stubMaxEcho = 800

// Stub is the null-object backend used when no provider credentials are
// configured. It is deterministic and never fails.
type Stub struct{}

// NewStub creates the null-object backend.
func NewStub() *Stub { return &Stub{} }

func (s *Stub) Name() string { return StubName }

func (s *Stub) Chat(_ context.Context, messages []Message) (string, error) {
	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			user = messages[i].Content
			break
		}
	}
	user = truncate(user, stubMaxEcho)

	return fmt.Sprintf(
		"AI is not configured (no provider credentials found).\n\n"+
			"Here is a structured non-AI suggestion based on your prompt:\n"+
			"- What you asked: %s\n"+
			"- Next steps: set OPENROUTER_API_KEY, OPENAI_API_KEY or OLLAMA_BASE_URL + OLLAMA_MODEL to enable real insights.",
		user,
	), nil
}

// truncate cuts the string at max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
