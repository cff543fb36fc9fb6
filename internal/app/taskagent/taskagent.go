// Package taskagent turns a task into an actionable AI-generated plan with
// suggested file searches.
package taskagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"taskdash/internal/ai"
	"taskdash/internal/log"
	"taskdash/internal/model"
	"taskdash/internal/storage"
)

// How many open tasks a single batch run will process at most.
const maxBatchTasks = 50

// ServiceConfig is the configuration for the task agent service.
type ServiceConfig struct {
	Repository storage.Repository
	AIClient   ai.Client
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.AIClient == nil {
		c.AIClient = ai.NewStub()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskAgent"})
	return nil
}

// Service generates and persists task plans.
type Service struct {
	repo   storage.Repository
	client ai.Client
	logger log.Logger
}

// NewService creates a new task agent service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		client: cfg.AIClient,
		logger: cfg.Logger,
	}, nil
}

const systemPrompt = `You are an assistant that turns a user task into an actionable plan.
Return STRICT JSON only (no markdown, no backticks).
Keep it short and practical.`

const schemaHint = `{
  "title": "string (short normalized task title)",
  "priority": "low|medium|high",
  "today_plan": ["step 1", "step 2", "step 3"],
  "suggested_file_searches": [{"query": "string", "why": "string"}],
  "questions_to_ask_user": ["string"]
}`

// planPayload is the subset of the model's JSON reply the agent extracts.
type planPayload struct {
	SuggestedFileSearches []struct {
		Query string `json:"query"`
	} `json:"suggested_file_searches"`
}

// GeneratePlan asks the backend for a plan and persists it as the task's
// latest plan, overwriting any prior one.
func (s *Service) GeneratePlan(ctx context.Context, taskID string) (*model.TaskPlan, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	out, err := s.client.Chat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: buildPrompt(task.Title)},
	})
	if err != nil {
		return nil, fmt.Errorf("could not generate plan for task %s: %w", taskID, err)
	}

	plan := model.TaskPlan{
		TaskID:      task.ID,
		Provider:    s.client.Name(),
		CreatedAt:   time.Now().UTC(),
		Content:     strings.TrimSpace(out),
		SearchTerms: extractSearchTerms(out),
	}

	if err := s.repo.SaveTaskPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("could not save plan: %w", err)
	}

	s.logger.Infof("Generated plan for task %s (%s)", task.ID, plan.Provider)
	return &plan, nil
}

// BatchResult summarizes a "generate for all open tasks" run.
type BatchResult struct {
	Generated int
	Failed    int
}

// GenerateAll generates plans for all open tasks sequentially. A failure on
// one task does not halt processing of the remainder.
func (s *Service) GenerateAll(ctx context.Context) (*BatchResult, error) {
	open, err := s.repo.ListTasks(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("could not list open tasks: %w", err)
	}
	if len(open) > maxBatchTasks {
		open = open[:maxBatchTasks]
	}

	res := &BatchResult{}
	for _, task := range open {
		if _, err := s.GeneratePlan(ctx, task.ID); err != nil {
			s.logger.Warningf("Plan generation failed for task %s: %s", task.ID, err)
			res.Failed++
			continue
		}
		res.Generated++
	}

	s.logger.Infof("Batch plan generation done: %d generated, %d failed", res.Generated, res.Failed)
	return res, nil
}

func buildPrompt(title string) string {
	return fmt.Sprintf(
		"Create a plan for this task.\n\nTask: %s\n\nReturn JSON matching this schema (keys required):\n%s",
		strings.TrimSpace(title), schemaHint,
	)
}

// extractSearchTerms best-effort parses the reply JSON for suggested search
// queries. Replies that are not valid JSON yield no terms.
func extractSearchTerms(out string) []string {
	var payload planPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		return nil
	}

	var terms []string
	for _, s := range payload.SuggestedFileSearches {
		q := strings.TrimSpace(s.Query)
		if q != "" {
			terms = append(terms, q)
		}
	}
	return terms
}
