// Package storagemock has mocks for the storage repositories.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taskdash/internal/model"
)

// MockRepository is a testify mock of storage.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateTask(ctx context.Context, t model.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	args := m.Called(ctx, id)
	task, _ := args.Get(0).(*model.Task)
	return task, args.Error(1)
}

func (m *MockRepository) ListTasks(ctx context.Context, includeDone bool) ([]model.Task, error) {
	args := m.Called(ctx, includeDone)
	tasks, _ := args.Get(0).([]model.Task)
	return tasks, args.Error(1)
}

func (m *MockRepository) SetTaskCompleted(ctx context.Context, id string, done bool) error {
	args := m.Called(ctx, id, done)
	return args.Error(0)
}

func (m *MockRepository) DeleteTasks(ctx context.Context, ids []string) (int, error) {
	args := m.Called(ctx, ids)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) SaveTaskPlan(ctx context.Context, p model.TaskPlan) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) GetTaskPlan(ctx context.Context, taskID string) (*model.TaskPlan, error) {
	args := m.Called(ctx, taskID)
	plan, _ := args.Get(0).(*model.TaskPlan)
	return plan, args.Error(1)
}

func (m *MockRepository) UpsertOAuthToken(ctx context.Context, t model.OAuthToken) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepository) GetOAuthToken(ctx context.Context, provider, userEmail string) (*model.OAuthToken, error) {
	args := m.Called(ctx, provider, userEmail)
	token, _ := args.Get(0).(*model.OAuthToken)
	return token, args.Error(1)
}

func (m *MockRepository) DeleteOAuthToken(ctx context.Context, provider, userEmail string) error {
	args := m.Called(ctx, provider, userEmail)
	return args.Error(0)
}
