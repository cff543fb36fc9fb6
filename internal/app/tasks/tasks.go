// Package tasks implements the task inbox use cases.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"taskdash/internal/log"
	"taskdash/internal/model"
	"taskdash/internal/storage"
)

// ServiceConfig is the configuration for the tasks service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Tasks"})
	return nil
}

// Service handles the task inbox business logic.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new tasks service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Create adds a new open task with the given title.
func (s *Service) Create(ctx context.Context, title string) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("task title is required: %w", model.ErrNotValid)
	}

	task := model.Task{
		ID:        ulid.Make().String(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("could not save task: %w", err)
	}

	s.logger.Infof("Created task: %s (%s)", task.Title, task.ID)
	return &task, nil
}

// List returns the tasks, most recent first.
func (s *Service) List(ctx context.Context, includeDone bool) ([]model.Task, error) {
	tasks, err := s.repo.ListTasks(ctx, includeDone)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}
	return tasks, nil
}

// Toggle flips a task between open and done and returns the new done state.
// Completion only ever changes through this explicit user action.
func (s *Service) Toggle(ctx context.Context, id string) (bool, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return false, fmt.Errorf("could not get task: %w", err)
	}

	done := !task.Done()
	if err := s.repo.SetTaskCompleted(ctx, id, done); err != nil {
		return false, fmt.Errorf("could not update task: %w", err)
	}

	s.logger.Infof("Task %s done=%t", id, done)
	return done, nil
}

// Delete removes a single task regardless of its completion state.
func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.repo.DeleteTasks(ctx, []string{id})
	if err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %q: %w", id, model.ErrNotFound)
	}

	s.logger.Infof("Deleted task %s", id)
	return nil
}

// DeleteCompleted removes all completed tasks and returns how many were
// deleted, open tasks are never removed by this bulk operation.
func (s *Service) DeleteCompleted(ctx context.Context) (int, error) {
	tasks, err := s.repo.ListTasks(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("could not list tasks: %w", err)
	}

	var ids []string
	for _, t := range tasks {
		if t.Done() {
			ids = append(ids, t.ID)
		}
	}

	n, err := s.repo.DeleteTasks(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("could not delete tasks: %w", err)
	}

	s.logger.Infof("Deleted %d completed tasks", n)
	return n, nil
}
