package storage

import (
	"context"

	"taskdash/internal/model"
)

// Repository is the interface for task and integration credential persistence.
type Repository interface {
	CreateTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, includeDone bool) ([]model.Task, error)
	SetTaskCompleted(ctx context.Context, id string, done bool) error
	DeleteTasks(ctx context.Context, ids []string) (int, error)

	SaveTaskPlan(ctx context.Context, p model.TaskPlan) error
	GetTaskPlan(ctx context.Context, taskID string) (*model.TaskPlan, error)

	UpsertOAuthToken(ctx context.Context, t model.OAuthToken) error
	GetOAuthToken(ctx context.Context, provider, userEmail string) (*model.OAuthToken, error)
	DeleteOAuthToken(ctx context.Context, provider, userEmail string) error
}
