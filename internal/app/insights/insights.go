// Package insights implements the insight summarizer: a non-AI baseline over
// tasks and files, optionally enriched by an AI backend summary.
package insights

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"taskdash/internal/ai"
	"taskdash/internal/log"
	"taskdash/internal/model"
	"taskdash/internal/search"
	"taskdash/internal/storage"
)

const (
	maxDigestOpenTasks = 20
	maxDigestDoneTasks = 10
	maxDigestHits      = 10
	maxDigestLineLen   = 200
	snippetRadius      = 2
)

// Searcher is the part of the file searcher the service needs.
type Searcher interface {
	Root() string
	Stats(ctx context.Context) (*model.FileStats, error)
}

var _ Searcher = (*search.Searcher)(nil)

// ServiceConfig is the configuration for the insights service.
type ServiceConfig struct {
	Searcher   Searcher
	Repository storage.Repository
	AIClient   ai.Client
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Searcher == nil {
		return fmt.Errorf("searcher is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.AIClient == nil {
		c.AIClient = ai.NewStub()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Insights"})
	return nil
}

// Service computes insight reports.
type Service struct {
	searcher Searcher
	repo     storage.Repository
	client   ai.Client
	logger   log.Logger
}

// NewService creates a new insights service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		searcher: cfg.Searcher,
		repo:     cfg.Repository,
		client:   cfg.AIClient,
		logger:   cfg.Logger,
	}, nil
}

// ReportOptions are the options for generating an insight report.
type ReportOptions struct {
	// Question is the user's free-text insight request.
	Question string
	// Hits are search results to include in the AI digest.
	Hits []model.SearchResult
}

// Report computes the non-AI baseline and, when a real backend is
// configured, asks it for a natural-language summary. A backend failure
// never fails the report, it falls back to the baseline with a warning.
func (s *Service) Report(ctx context.Context, opts ReportOptions) (*model.InsightReport, error) {
	stats, err := s.searcher.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not compute file stats: %w", err)
	}

	tasks, err := s.repo.ListTasks(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	report := &model.InsightReport{
		FileCount:   stats.Count,
		TotalBytes:  stats.TotalBytes,
		ByExtension: stats.ByExtension,
	}
	for _, t := range tasks {
		if t.Done() {
			report.DoneTasks++
		} else {
			report.OpenTasks++
		}
	}

	if ai.IsStub(s.client) {
		return report, nil
	}

	report.Provider = s.client.Name()
	out, err := s.client.Chat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: s.buildDigest(tasks, opts)},
	})
	if err != nil {
		s.logger.Warningf("AI backend failed, falling back to baseline: %s", err)
		report.Warning = fmt.Sprintf("AI summary unavailable (%s), showing baseline only.", s.client.Name())
		return report, nil
	}

	report.AIText = out
	return report, nil
}

const systemPrompt = `You are an assistant that helps a user manage daily tasks and extract insights from local files.
Be practical, concise, and action-oriented.
If you suggest file actions, describe them clearly but do not fabricate file contents beyond what is shown.`

// buildDigest renders the bounded-size textual digest submitted to the
// backend.
func (s *Service) buildDigest(tasks []model.Task, opts ReportOptions) string {
	var open, done []model.Task
	for _, t := range tasks {
		if t.Done() {
			done = append(done, t)
		} else {
			open = append(open, t)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Root folder: %s\n\n", s.searcher.Root())

	b.WriteString("Tasks:\n")
	fmt.Fprintf(&b, "- Open: %d\n", len(open))
	for i, t := range open {
		if i >= maxDigestOpenTasks {
			b.WriteString("  - ...\n")
			break
		}
		fmt.Fprintf(&b, "  - %s\n", t.Title)
	}
	fmt.Fprintf(&b, "- Completed (recent): %d\n", min(len(done), maxDigestDoneTasks))
	for i, t := range done {
		if i >= maxDigestDoneTasks {
			break
		}
		fmt.Fprintf(&b, "  - %s\n", t.Title)
	}

	hits := opts.Hits
	if len(hits) > maxDigestHits {
		hits = hits[:maxDigestHits]
	}
	fmt.Fprintf(&b, "\nFile search hits shown: %d\n", len(hits))
	for _, h := range hits {
		line := truncate(h.Snippet, maxDigestLineLen)
		fmt.Fprintf(&b, "- %s:%d: %s\n", s.relPath(h.Path), h.Line, line)
		if snippet := search.Snippet(h.Path, h.Line, snippetRadius); snippet != "" {
			b.WriteString("  Snippet:\n")
			for _, sl := range strings.Split(snippet, "\n") {
				fmt.Fprintf(&b, "  %s\n", sl)
			}
		}
	}

	question := strings.TrimSpace(opts.Question)
	if question == "" {
		question = "Give me insights and next steps."
	}
	fmt.Fprintf(&b, "\nUser question:\n%s\n", question)

	b.WriteString("\nOutput format:\n" +
		"1) Top 5 actionable priorities for today\n" +
		"2) File/data insights (if any)\n" +
		"3) Suggested next searches or questions\n")

	return b.String()
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

func (s *Service) relPath(path string) string {
	root := s.searcher.Root()
	if rel, ok := strings.CutPrefix(path, root); ok {
		return strings.TrimPrefix(rel, "/")
	}
	return path
}
