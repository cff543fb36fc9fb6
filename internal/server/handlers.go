package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"taskdash/internal/ai"
	"taskdash/internal/app/insights"
	"taskdash/internal/auth"
	"taskdash/internal/googledrive"
	"taskdash/internal/model"
	"taskdash/internal/search"
)

const (
	maxDriveAnalyzeBytes = 50_000
	defaultDrivePageSize = 15
	maxDrivePageSize     = 50
)

type basePage struct {
	Active       string
	User         *auth.SessionClaims
	Notice       string
	Error        string
	DriveEnabled bool
}

func (s *Service) basePage(c *gin.Context, active string) basePage {
	user, _ := s.sessionUser(c)
	return basePage{
		Active:       active,
		User:         user,
		Notice:       c.Query("notice"),
		Error:        c.Query("error"),
		DriveEnabled: s.drive != nil,
	}
}

func redirectNotice(c *gin.Context, path, notice string) {
	c.Redirect(http.StatusSeeOther, path+"?notice="+url.QueryEscape(notice))
}

func redirectError(c *gin.Context, path, msg string) {
	c.Redirect(http.StatusSeeOther, path+"?error="+url.QueryEscape(msg))
}

func (s *Service) internalError(c *gin.Context, err error) {
	s.logger.WithCtxValues(c.Request.Context()).Errorf("Request failed: %s", err)
	c.String(http.StatusInternalServerError, "internal error")
	c.Abort()
}

// Tasks tab.

type tasksPage struct {
	basePage
	Tasks    []model.Task
	ShowDone bool
	Provider string
	Root     string
}

func (s *Service) handleHome(c *gin.Context) {
	// Google redirects back to the app root. Google always sends state
	// alongside code or error, a bare error param is one of our own
	// notices.
	if s.drive != nil {
		if code, state := c.Query("code"), c.Query("state"); state != "" {
			if errMsg := c.Query("error"); errMsg != "" {
				redirectError(c, "/login", fmt.Sprintf("Google login error: %s", errMsg))
				return
			}
			if code != "" {
				s.handleOAuthCallback(c, code, state)
				return
			}
		}
		if _, ok := s.sessionUser(c); !ok {
			c.Redirect(http.StatusSeeOther, "/login")
			return
		}
	}

	showDone := c.Query("open") == ""
	list, err := s.tasks.List(c.Request.Context(), showDone)
	if err != nil {
		s.internalError(c, err)
		return
	}

	page := tasksPage{
		basePage: s.basePage(c, "tasks"),
		Tasks:    list,
		ShowDone: showDone,
		Provider: s.aiClient.Name(),
		Root:     s.searcher.Root(),
	}
	c.HTML(http.StatusOK, "tasks.gohtml", page)
}

func (s *Service) handleTaskCreate(c *gin.Context) {
	title := c.PostForm("title")
	task, err := s.tasks.Create(c.Request.Context(), title)
	if err != nil {
		if errors.Is(err, model.ErrNotValid) {
			redirectError(c, "/", "Task title cannot be empty.")
			return
		}
		s.internalError(c, err)
		return
	}

	if c.PostForm("auto_plan") != "" {
		if _, err := s.planner.GeneratePlan(c.Request.Context(), task.ID); err != nil {
			redirectError(c, "/", fmt.Sprintf("Task added, but the AI plan failed: %s", err))
			return
		}
		redirectNotice(c, "/", "Task added with AI plan.")
		return
	}

	redirectNotice(c, "/", "Task added.")
}

func (s *Service) handleTaskToggle(c *gin.Context) {
	done, err := s.tasks.Toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			redirectError(c, "/", "Task not found.")
			return
		}
		s.internalError(c, err)
		return
	}

	if done {
		redirectNotice(c, "/", "Task completed.")
	} else {
		redirectNotice(c, "/", "Task reopened.")
	}
}

func (s *Service) handleTaskDelete(c *gin.Context) {
	err := s.tasks.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		redirectNotice(c, "/", "Task deleted.")
	case errors.Is(err, model.ErrNotFound):
		redirectError(c, "/", "Task not found.")
	default:
		s.internalError(c, err)
	}
}

func (s *Service) handleTaskPlan(c *gin.Context) {
	_, err := s.planner.GeneratePlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			redirectError(c, "/", "Task not found.")
		case errors.Is(err, model.ErrBackend):
			redirectError(c, "/", fmt.Sprintf("AI plan failed: %s", err))
		default:
			s.internalError(c, err)
		}
		return
	}
	redirectNotice(c, "/", "AI plan generated.")
}

func (s *Service) handlePlanAll(c *gin.Context) {
	res, err := s.planner.GenerateAll(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	redirectNotice(c, "/", fmt.Sprintf("Generated %d plan(s), %d failed.", res.Generated, res.Failed))
}

func (s *Service) handleDeleteCompleted(c *gin.Context) {
	n, err := s.tasks.DeleteCompleted(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	redirectNotice(c, "/", fmt.Sprintf("Deleted %d completed task(s).", n))
}

// Search tab.

type searchHit struct {
	Path    string
	Line    int
	Snippet string
	Context string
}

type searchPage struct {
	basePage
	Query         string
	Regex         bool
	CaseSensitive bool
	Root          string
	Hits          []searchHit
}

func (s *Service) handleSearch(c *gin.Context) {
	page := searchPage{
		basePage:      s.basePage(c, "search"),
		Query:         strings.TrimSpace(c.Query("q")),
		Regex:         c.Query("regex") != "",
		CaseSensitive: c.Query("case") != "",
		Root:          s.searcher.Root(),
	}

	if page.Query != "" {
		hits, err := s.searcher.Search(c.Request.Context(), page.Query, search.Options{
			Regex:         page.Regex,
			CaseSensitive: page.CaseSensitive,
		})
		if err != nil {
			// Bad queries and unreadable roots degrade to no results
			// with a notice.
			if errors.Is(err, model.ErrNotValid) {
				page.Error = fmt.Sprintf("Search failed: %s", err)
			} else {
				s.internalError(c, err)
				return
			}
		}
		page.Hits = s.viewHits(hits)
	}

	c.HTML(http.StatusOK, "search.gohtml", page)
}

func (s *Service) viewHits(hits []model.SearchResult) []searchHit {
	root := s.searcher.Root()
	out := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		path := h.Path
		if rel, err := filepath.Rel(root, h.Path); err == nil {
			path = rel
		}
		out = append(out, searchHit{
			Path:    path,
			Line:    h.Line,
			Snippet: h.Snippet,
			Context: search.Snippet(h.Path, h.Line, 6),
		})
	}
	return out
}

// Insights tab.

type insightsPage struct {
	basePage
	Question string
	Query    string
	Provider string
	Report   *model.InsightReport
}

const defaultQuestion = "What should I focus on today? Summarize any patterns from the search results and suggest next searches."

func (s *Service) handleInsightsPage(c *gin.Context) {
	page := insightsPage{
		basePage: s.basePage(c, "insights"),
		Question: defaultQuestion,
		Provider: s.aiClient.Name(),
	}
	c.HTML(http.StatusOK, "insights.gohtml", page)
}

func (s *Service) handleInsightsGenerate(c *gin.Context) {
	page := insightsPage{
		basePage: s.basePage(c, "insights"),
		Question: strings.TrimSpace(c.PostForm("question")),
		Query:    strings.TrimSpace(c.PostForm("q")),
		Provider: s.aiClient.Name(),
	}
	if page.Question == "" {
		page.Question = defaultQuestion
	}

	var hits []model.SearchResult
	if page.Query != "" {
		var err error
		hits, err = s.searcher.Search(c.Request.Context(), page.Query, search.Options{})
		if err != nil && !errors.Is(err, model.ErrNotValid) {
			s.internalError(c, err)
			return
		}
		if err != nil {
			page.Error = fmt.Sprintf("Search skipped: %s", err)
		}
	}

	report, err := s.insights.Report(c.Request.Context(), insights.ReportOptions{
		Question: page.Question,
		Hits:     hits,
	})
	if err != nil {
		s.internalError(c, err)
		return
	}

	page.Report = report
	c.HTML(http.StatusOK, "insights.gohtml", page)
}

// Data sources tab.

type drivePage struct {
	basePage
	Configured bool
	Connected  bool
	Email      string
	Query      string
	PageSize   int
	Files      []googledrive.File
	Analysis   string
	Analyzed   string
}

func (s *Service) handleDrivePage(c *gin.Context) {
	page := s.drivePage(c)
	c.HTML(http.StatusOK, "drive.gohtml", page)
}

func (s *Service) drivePage(c *gin.Context) drivePage {
	page := drivePage{
		basePage: s.basePage(c, "drive"),
		Query:    "trashed = false",
		PageSize: defaultDrivePageSize,
	}
	if s.drive == nil {
		return page
	}
	page.Configured = true

	user, ok := s.sessionUser(c)
	if !ok {
		return page
	}
	page.Email = user.Email

	if _, err := s.repo.GetOAuthToken(c.Request.Context(), model.ProviderGoogleDrive, user.Email); err == nil {
		page.Connected = true
	}
	return page
}

func (s *Service) handleDriveConnect(c *gin.Context) {
	if s.drive == nil {
		redirectError(c, "/drive", "Google OAuth is not configured.")
		return
	}

	user, ok := s.sessionUser(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	state, err := auth.SignState(s.authSecret, auth.FlowDrive, user.Email, 0)
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.Redirect(http.StatusSeeOther, s.drive.DriveAuthURL(state))
}

func (s *Service) handleDriveDisconnect(c *gin.Context) {
	user, ok := s.sessionUser(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	err := s.repo.DeleteOAuthToken(c.Request.Context(), model.ProviderGoogleDrive, user.Email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		s.internalError(c, err)
		return
	}

	redirectNotice(c, "/drive", "Google Drive disconnected.")
}

func (s *Service) handleDriveSearch(c *gin.Context) {
	page, token, ok := s.drivePageWithToken(c)
	if !ok {
		return
	}

	page.Query = strings.TrimSpace(c.PostForm("q"))
	if n, err := strconv.Atoi(c.PostForm("page_size")); err == nil && n > 0 {
		if n > maxDrivePageSize {
			n = maxDrivePageSize
		}
		page.PageSize = n
	}

	files, err := s.drive.ListFiles(c.Request.Context(), token.RefreshToken, page.Query, int64(page.PageSize))
	if err != nil {
		if errors.Is(err, model.ErrOAuth) {
			page.Error = "Drive access failed. Revoke the app in your Google account permissions and reconnect."
		} else {
			page.Error = fmt.Sprintf("Drive search failed: %s", err)
		}
		c.HTML(http.StatusOK, "drive.gohtml", page)
		return
	}

	page.Files = files
	c.HTML(http.StatusOK, "drive.gohtml", page)
}

func (s *Service) handleDriveAnalyze(c *gin.Context) {
	page, token, ok := s.drivePageWithToken(c)
	if !ok {
		return
	}

	fileID := c.PostForm("file_id")
	mimeType := c.PostForm("mime_type")
	name := c.PostForm("name")
	if fileID == "" {
		redirectError(c, "/drive", "No Drive file selected.")
		return
	}

	text, err := s.drive.DownloadText(c.Request.Context(), token.RefreshToken, fileID, mimeType, maxDriveAnalyzeBytes)
	if err != nil {
		page.Error = fmt.Sprintf("Drive download failed: %s", err)
		c.HTML(http.StatusOK, "drive.gohtml", page)
		return
	}

	prompt := fmt.Sprintf(
		"You are analyzing a file from Google Drive for the user.\n"+
			"Summarize key points, extract actionable items, and highlight any numbers/dates.\n"+
			"If the text looks truncated, mention what to fetch next.\n\n"+
			"File name: %s\nMIME: %s\n\nCONTENT (may be truncated):\n%s",
		name, mimeType, text)

	out, err := s.aiClient.Chat(c.Request.Context(), []ai.Message{
		{Role: ai.RoleSystem, Content: "Return concise bullet points."},
		{Role: ai.RoleUser, Content: prompt},
	})
	if err != nil {
		page.Error = fmt.Sprintf("AI analysis failed: %s", err)
		c.HTML(http.StatusOK, "drive.gohtml", page)
		return
	}

	page.Analysis = out
	page.Analyzed = name
	c.HTML(http.StatusOK, "drive.gohtml", page)
}

// drivePageWithToken loads the page context plus the stored Drive credential,
// rendering the page with an error when the account is not connected.
func (s *Service) drivePageWithToken(c *gin.Context) (drivePage, *model.OAuthToken, bool) {
	page := s.drivePage(c)
	if s.drive == nil || page.Email == "" {
		c.Redirect(http.StatusSeeOther, "/drive")
		return page, nil, false
	}

	token, err := s.repo.GetOAuthToken(c.Request.Context(), model.ProviderGoogleDrive, page.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			page.Connected = false
			page.Error = "Google Drive is not connected."
			c.HTML(http.StatusOK, "drive.gohtml", page)
			return page, nil, false
		}
		s.internalError(c, err)
		return page, nil, false
	}

	return page, token, true
}

// Login and OAuth callback.

type loginPage struct {
	basePage
	LoginURL string
}

func (s *Service) handleLoginPage(c *gin.Context) {
	if s.drive == nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if _, ok := s.sessionUser(c); ok {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	state, err := auth.SignState(s.authSecret, auth.FlowLogin, "", 0)
	if err != nil {
		s.internalError(c, err)
		return
	}

	page := loginPage{
		basePage: s.basePage(c, "login"),
		LoginURL: s.drive.LoginAuthURL(state),
	}
	c.HTML(http.StatusOK, "login.gohtml", page)
}

func (s *Service) handleLogout(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (s *Service) handleOAuthCallback(c *gin.Context, code, state string) {
	ctx := c.Request.Context()

	claims, err := auth.VerifyState(s.authSecret, state)
	if err != nil {
		redirectError(c, "/login", "Invalid OAuth state. Please try logging in again.")
		return
	}

	token, err := s.drive.Exchange(ctx, code)
	if err != nil {
		redirectError(c, "/login", fmt.Sprintf("OAuth callback failed: %s", err))
		return
	}

	info, err := s.drive.FetchUserInfo(ctx, token)
	if err != nil {
		redirectError(c, "/login", fmt.Sprintf("OAuth callback failed: %s", err))
		return
	}

	switch claims.Flow {
	case auth.FlowLogin:
		if !s.allowlist.Allowed(info.Email) {
			redirectError(c, "/login", "Access denied: your Google account is not allowed.")
			return
		}

		session, err := auth.SignSession(s.authSecret, info.Email, info.Name, 0)
		if err != nil {
			s.internalError(c, err)
			return
		}
		c.SetCookie(sessionCookie, session, int(auth.DefaultSessionTTL/time.Second), "/", "", false, true)
		c.Redirect(http.StatusSeeOther, "/")

	case auth.FlowDrive:
		if claims.Email != "" && claims.Email != info.Email {
			redirectError(c, "/drive", "Drive connect email mismatch. Please retry.")
			return
		}
		if token.RefreshToken == "" {
			redirectError(c, "/drive", "Google did not return a refresh token. Revoke the app in your Google account permissions and retry.")
			return
		}

		err := s.repo.UpsertOAuthToken(ctx, model.OAuthToken{
			Provider:     model.ProviderGoogleDrive,
			UserEmail:    info.Email,
			RefreshToken: token.RefreshToken,
			Scope:        googledrive.DriveScope,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			s.internalError(c, err)
			return
		}
		redirectNotice(c, "/drive", "Google Drive connected.")

	default:
		redirectError(c, "/login", fmt.Sprintf("Unknown OAuth flow: %s", claims.Flow))
	}
}
