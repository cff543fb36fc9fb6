// Package server implements the web UI: task inbox, file search, insights
// and data sources tabs rendered server-side, plus the Google OAuth
// callback endpoint.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"taskdash/internal/ai"
	"taskdash/internal/app/insights"
	"taskdash/internal/app/taskagent"
	"taskdash/internal/app/tasks"
	"taskdash/internal/auth"
	"taskdash/internal/googledrive"
	"taskdash/internal/log"
	"taskdash/internal/model"
	"taskdash/internal/search"
	"taskdash/internal/storage"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

const sessionCookie = "taskdash_session"

// TasksService knows how to manage the task inbox.
type TasksService interface {
	Create(ctx context.Context, title string) (*model.Task, error)
	List(ctx context.Context, includeDone bool) ([]model.Task, error)
	Toggle(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteCompleted(ctx context.Context) (int, error)
}

// InsightsService knows how to generate insight reports.
type InsightsService interface {
	Report(ctx context.Context, opts insights.ReportOptions) (*model.InsightReport, error)
}

// PlannerService knows how to generate AI task plans.
type PlannerService interface {
	GeneratePlan(ctx context.Context, taskID string) (*model.TaskPlan, error)
	GenerateAll(ctx context.Context) (*taskagent.BatchResult, error)
}

// FileSearcher knows how to search files under the configured root.
type FileSearcher interface {
	Root() string
	Search(ctx context.Context, query string, opts search.Options) ([]model.SearchResult, error)
}

// DriveService knows how to run the Google OAuth flows and browse Drive.
type DriveService interface {
	LoginAuthURL(state string) string
	DriveAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*googledrive.UserInfo, error)
	ListFiles(ctx context.Context, refreshToken, query string, pageSize int64) ([]googledrive.File, error)
	DownloadText(ctx context.Context, refreshToken, fileID, mimeType string, maxBytes int64) (string, error)
}

var (
	_ TasksService    = (*tasks.Service)(nil)
	_ InsightsService = (*insights.Service)(nil)
	_ PlannerService  = (*taskagent.Service)(nil)
	_ FileSearcher    = (*search.Searcher)(nil)
	_ DriveService    = (*googledrive.Service)(nil)
)

// ServiceConfig is the configuration for the web UI service.
type ServiceConfig struct {
	Tasks      TasksService
	Insights   InsightsService
	Planner    PlannerService
	Searcher   FileSearcher
	Repository storage.Repository
	AIClient   ai.Client

	// Drive is optional. When nil, Google login and the Drive browser are
	// disabled and the UI is open, which is fine for local use.
	Drive      DriveService
	AuthSecret string
	Allowlist  *auth.Allowlist

	Debug  bool
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Tasks == nil {
		return fmt.Errorf("tasks service is required")
	}
	if c.Insights == nil {
		return fmt.Errorf("insights service is required")
	}
	if c.Planner == nil {
		return fmt.Errorf("planner service is required")
	}
	if c.Searcher == nil {
		return fmt.Errorf("file searcher is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.AIClient == nil {
		c.AIClient = ai.NewStub()
	}
	if c.Drive != nil && c.AuthSecret == "" {
		return fmt.Errorf("auth secret is required when google oauth is configured")
	}
	if c.Allowlist == nil {
		c.Allowlist = auth.NewAllowlist("", "")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "server.Service"})
	return nil
}

// Service is the web UI HTTP service.
type Service struct {
	tasks      TasksService
	insights   InsightsService
	planner    PlannerService
	searcher   FileSearcher
	repo       storage.Repository
	aiClient   ai.Client
	drive      DriveService
	authSecret string
	allowlist  *auth.Allowlist
	logger     log.Logger

	engine *gin.Engine
}

// NewService creates a new web UI service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Service{
		tasks:      cfg.Tasks,
		insights:   cfg.Insights,
		planner:    cfg.Planner,
		searcher:   cfg.Searcher,
		repo:       cfg.Repository,
		aiClient:   cfg.AIClient,
		drive:      cfg.Drive,
		authSecret: cfg.AuthSecret,
		allowlist:  cfg.Allowlist,
		logger:     cfg.Logger,
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"fmtBytes": fmtBytes,
		"fmtTime":  fmtTime,
	}).ParseFS(templatesFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("could not parse templates: %w", err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	engine.SetHTMLTemplate(tmpl)
	s.engine = engine
	s.registerRoutes()

	return s, nil
}

// Handler returns the HTTP handler serving the UI.
func (s *Service) Handler() http.Handler { return s.engine }

func (s *Service) registerRoutes() {
	e := s.engine

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The OAuth redirect URI is the app root, so "/" stays outside the
	// login middleware and checks the session itself.
	e.GET("/", s.handleHome)
	e.GET("/login", s.handleLoginPage)
	e.POST("/logout", s.handleLogout)

	g := e.Group("", s.requireLogin())
	g.POST("/tasks", s.handleTaskCreate)
	g.POST("/tasks/plan-all", s.handlePlanAll)
	g.POST("/tasks/delete-completed", s.handleDeleteCompleted)
	g.POST("/tasks/:id/toggle", s.handleTaskToggle)
	g.POST("/tasks/:id/delete", s.handleTaskDelete)
	g.POST("/tasks/:id/plan", s.handleTaskPlan)
	g.GET("/search", s.handleSearch)
	g.GET("/insights", s.handleInsightsPage)
	g.POST("/insights", s.handleInsightsGenerate)
	g.GET("/drive", s.handleDrivePage)
	g.POST("/drive/connect", s.handleDriveConnect)
	g.POST("/drive/disconnect", s.handleDriveDisconnect)
	g.POST("/drive/search", s.handleDriveSearch)
	g.POST("/drive/analyze", s.handleDriveAnalyze)
}

func (s *Service) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithCtxValues(c.Request.Context()).Debugf("%s %s %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// requireLogin redirects to the login page when Google OAuth is configured
// and the request carries no valid session.
func (s *Service) requireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.drive == nil {
			c.Next()
			return
		}

		user, ok := s.sessionUser(c)
		if !ok {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// sessionUser returns the logged-in user from the session cookie, if any.
func (s *Service) sessionUser(c *gin.Context) (*auth.SessionClaims, bool) {
	if u, exists := c.Get("user"); exists {
		if claims, ok := u.(*auth.SessionClaims); ok {
			return claims, true
		}
	}

	cookie, err := c.Cookie(sessionCookie)
	if err != nil || cookie == "" {
		return nil, false
	}

	claims, err := auth.VerifySession(s.authSecret, cookie)
	if err != nil {
		return nil, false
	}

	return claims, true
}

func fmtBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
