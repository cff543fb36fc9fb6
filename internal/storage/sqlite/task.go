package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdash/internal/model"
)

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	var completedAt *int64
	if t.CompletedAt != nil {
		u := t.CompletedAt.Unix()
		completedAt = &u
	}

	query := `INSERT INTO tasks (id, title, created_at, completed_at) VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, t.ID, t.Title, t.CreatedAt.Unix(), completedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: tasks.") {
			return fmt.Errorf("task already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", t.ID)
	return nil
}

// GetTask retrieves a task by ID, including its latest plan if present.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	query := `
		SELECT t.id, t.title, t.created_at, t.completed_at,
			p.provider, p.content, p.search_terms, p.created_at
		FROM tasks t
		LEFT JOIN task_plans p ON p.task_id = t.id
		WHERE t.id = ?
	`

	task, err := r.scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return &task, nil
}

// ListTasks returns all tasks, most recent first. When includeDone is false
// completed tasks are filtered out.
func (r *Repository) ListTasks(ctx context.Context, includeDone bool) ([]model.Task, error) {
	query := `
		SELECT t.id, t.title, t.created_at, t.completed_at,
			p.provider, p.content, p.search_terms, p.created_at
		FROM tasks t
		LEFT JOIN task_plans p ON p.task_id = t.id
	`
	if !includeDone {
		query += ` WHERE t.completed_at IS NULL`
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// SetTaskCompleted marks a task as done or reopens it.
func (r *Repository) SetTaskCompleted(ctx context.Context, id string, done bool) error {
	var completedAt *int64
	if done {
		u := time.Now().UTC().Unix()
		completedAt = &u
	}

	result, err := r.db.ExecContext(ctx, `UPDATE tasks SET completed_at = ? WHERE id = ?`, completedAt, id)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Set task %s completed=%t", id, done)
	return nil
}

// DeleteTasks deletes the given tasks and returns how many were removed.
func (r *Repository) DeleteTasks(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("could not delete tasks: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}

	r.logger.Debugf("Deleted %d tasks from repository", rows)
	return int(rows), nil
}

// SaveTaskPlan stores the latest plan for a task, overwriting any prior plan.
func (r *Repository) SaveTaskPlan(ctx context.Context, p model.TaskPlan) error {
	if p.TaskID == "" {
		return fmt.Errorf("plan task id is required: %w", model.ErrNotValid)
	}

	query := `
		INSERT INTO task_plans (task_id, provider, content, search_terms, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			provider = excluded.provider,
			content = excluded.content,
			search_terms = excluded.search_terms,
			created_at = excluded.created_at
	`

	_, err := r.db.ExecContext(ctx, query,
		p.TaskID,
		p.Provider,
		p.Content,
		strings.Join(p.SearchTerms, "\n"),
		p.CreatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("task %s: %w", p.TaskID, model.ErrNotFound)
		}
		return fmt.Errorf("could not save task plan: %w", err)
	}

	r.logger.Debugf("Saved plan for task %s (provider %s)", p.TaskID, p.Provider)
	return nil
}

// GetTaskPlan retrieves the latest plan for a task.
func (r *Repository) GetTaskPlan(ctx context.Context, taskID string) (*model.TaskPlan, error) {
	query := `SELECT task_id, provider, content, search_terms, created_at FROM task_plans WHERE task_id = ?`

	var p model.TaskPlan
	var searchTerms string
	var createdAt int64

	err := r.db.QueryRowContext(ctx, query, taskID).Scan(&p.TaskID, &p.Provider, &p.Content, &searchTerms, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan for task %s: %w", taskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task plan: %w", err)
	}

	p.SearchTerms = splitSearchTerms(searchTerms)
	p.CreatedAt = timeFromUnix(createdAt)

	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanTask(s scanner) (model.Task, error) {
	var task model.Task
	var createdAt int64
	var completedAt sql.NullInt64
	var planProvider, planContent, planTerms sql.NullString
	var planCreatedAt sql.NullInt64

	err := s.Scan(
		&task.ID,
		&task.Title,
		&createdAt,
		&completedAt,
		&planProvider,
		&planContent,
		&planTerms,
		&planCreatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	task.CreatedAt = timeFromUnix(createdAt)
	if completedAt.Valid {
		t := timeFromUnix(completedAt.Int64)
		task.CompletedAt = &t
	}

	if planProvider.Valid {
		task.Plan = &model.TaskPlan{
			TaskID:      task.ID,
			Provider:    planProvider.String,
			Content:     planContent.String,
			SearchTerms: splitSearchTerms(planTerms.String),
			CreatedAt:   timeFromUnix(planCreatedAt.Int64),
		}
	}

	return task, nil
}

func splitSearchTerms(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
