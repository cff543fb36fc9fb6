package ai_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdash/internal/ai"
)

func TestStubChat(t *testing.T) {
	tests := map[string]struct {
		messages []ai.Message
		expEcho  string
	}{
		"The last user message should be echoed back": {
			messages: []ai.Message{
				{Role: ai.RoleSystem, Content: "You are a planner."},
				{Role: ai.RoleUser, Content: "first question"},
				{Role: ai.RoleUser, Content: "second question"},
			},
			expEcho: "second question",
		},

		"Without a user message the echo should be empty": {
			messages: []ai.Message{
				{Role: ai.RoleSystem, Content: "You are a planner."},
			},
			expEcho: "What you asked: \n",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			stub := ai.NewStub()

			got, err := stub.Chat(context.Background(), test.messages)

			require.NoError(t, err)
			assert.Contains(t, got, test.expEcho)
			assert.Contains(t, got, "AI is not configured")
		})
	}
}

func TestStubChatTruncatesOnRuneBoundary(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// 300 three-byte runes, the echo cap is not a multiple of three so a
	// byte slice would cut a rune in half.
	long := strings.Repeat("世", 300)
	stub := ai.NewStub()

	got, err := stub.Chat(context.Background(), []ai.Message{{Role: ai.RoleUser, Content: long}})

	require.NoError(err)
	assert.True(utf8.ValidString(got))
	assert.NotContains(got, long)
	assert.Contains(got, strings.Repeat("世", 100))
}
