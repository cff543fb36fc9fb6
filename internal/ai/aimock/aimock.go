// Package aimock has mocks for the AI backend client.
package aimock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taskdash/internal/ai"
)

// MockClient is a testify mock of ai.Client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}
