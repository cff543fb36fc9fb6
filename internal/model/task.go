package model

import (
	"fmt"
	"strings"
	"time"
)

// Task represents a user-entered to-do item.
type Task struct {
	ID          string
	Title       string
	CreatedAt   time.Time
	CompletedAt *time.Time
	Plan        *TaskPlan
}

// Done returns whether the task has been completed.
func (t Task) Done() bool { return t.CompletedAt != nil }

// Validate checks the task is valid.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task title is required: %w", ErrNotValid)
	}
	return nil
}

// TaskPlan is the latest AI-generated plan for a task. Regenerating a plan
// overwrites the previous one, history is not retained.
type TaskPlan struct {
	TaskID      string
	Provider    string
	Content     string
	SearchTerms []string
	CreatedAt   time.Time
}
