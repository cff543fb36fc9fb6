package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"taskdash/internal/app/insights"
	"taskdash/internal/app/taskagent"
	"taskdash/internal/app/tasks"
	"taskdash/internal/auth"
	"taskdash/internal/googledrive"
	"taskdash/internal/model"
	"taskdash/internal/search"
	"taskdash/internal/server"
	"taskdash/internal/storage/storagemock"
)

const testSecret = "test-secret"

type driveMock struct {
	mock.Mock
}

func (m *driveMock) LoginAuthURL(state string) string {
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + url.QueryEscape(state)
}

func (m *driveMock) DriveAuthURL(state string) string {
	return "https://accounts.google.com/o/oauth2/v2/auth?drive=1&state=" + url.QueryEscape(state)
}

func (m *driveMock) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	args := m.Called(ctx, code)
	if t, _ := args.Get(0).(*oauth2.Token); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *driveMock) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*googledrive.UserInfo, error) {
	args := m.Called(ctx, token)
	if i, _ := args.Get(0).(*googledrive.UserInfo); i != nil {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *driveMock) ListFiles(ctx context.Context, refreshToken, query string, pageSize int64) ([]googledrive.File, error) {
	args := m.Called(ctx, refreshToken, query, pageSize)
	if f, _ := args.Get(0).([]googledrive.File); f != nil {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *driveMock) DownloadText(ctx context.Context, refreshToken, fileID, mimeType string, maxBytes int64) (string, error) {
	args := m.Called(ctx, refreshToken, fileID, mimeType, maxBytes)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	repo  *storagemock.MockRepository
	drive *driveMock
	srv   *server.Service
}

func newTestEnv(t *testing.T, withDrive bool) *testEnv {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("goodbye\n"), 0o644))

	searcher, err := search.NewSearcher(search.SearcherConfig{Root: root})
	require.NoError(t, err)

	repo := &storagemock.MockRepository{}

	tasksSvc, err := tasks.NewService(tasks.ServiceConfig{Repository: repo})
	require.NoError(t, err)
	insightsSvc, err := insights.NewService(insights.ServiceConfig{Searcher: searcher, Repository: repo})
	require.NoError(t, err)
	plannerSvc, err := taskagent.NewService(taskagent.ServiceConfig{Repository: repo})
	require.NoError(t, err)

	cfg := server.ServiceConfig{
		Tasks:      tasksSvc,
		Insights:   insightsSvc,
		Planner:    plannerSvc,
		Searcher:   searcher,
		Repository: repo,
	}

	env := &testEnv{repo: repo}
	if withDrive {
		env.drive = &driveMock{}
		cfg.Drive = env.drive
		cfg.AuthSecret = testSecret
	}

	srv, err := server.NewService(cfg)
	require.NoError(t, err)
	env.srv = srv

	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func sessionRequest(t *testing.T, method, target string, body url.Values) *http.Request {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	session, err := auth.SignSession(testSecret, "user@example.com", "User", 0)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "taskdash_session", Value: session})

	return req
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHomePage(t *testing.T) {
	t.Run("Without OAuth configured the task inbox should render openly.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, false)

		now := time.Now().UTC()
		env.repo.On("ListTasks", mock.Anything, true).Once().Return([]model.Task{
			{ID: "t1", Title: "Review bank statement", CreatedAt: now},
			{ID: "t2", Title: "Old chore", CreatedAt: now, CompletedAt: &now},
		}, nil)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "Review bank statement")
		assert.Contains(rec.Body.String(), "Old chore")
		env.repo.AssertExpectations(t)
	})

	t.Run("Hiding completed tasks should list only open ones.", func(t *testing.T) {
		env := newTestEnv(t, false)

		env.repo.On("ListTasks", mock.Anything, false).Once().Return([]model.Task{}, nil)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/?open=1", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		env.repo.AssertExpectations(t)
	})

	t.Run("With OAuth configured an anonymous request should go to login.", func(t *testing.T) {
		env := newTestEnv(t, true)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("With OAuth configured a valid session should render the inbox.", func(t *testing.T) {
		env := newTestEnv(t, true)

		env.repo.On("ListTasks", mock.Anything, true).Once().Return([]model.Task{}, nil)

		rec := env.do(sessionRequest(t, http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Signed in as")
	})

	t.Run("With OAuth configured a session request carrying an app error notice should render it, not bounce to login.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, true)

		env.repo.On("ListTasks", mock.Anything, true).Once().Return([]model.Task{}, nil)

		rec := env.do(sessionRequest(t, http.MethodGet, "/?error=Task+not+found.", nil))

		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "Task not found.")
	})

	t.Run("An OAuth error from Google carries a state param and should go to login.", func(t *testing.T) {
		env := newTestEnv(t, true)

		state, err := auth.SignState(testSecret, auth.FlowLogin, "", time.Minute)
		require.NoError(t, err)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/?error=access_denied&state="+url.QueryEscape(state), nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "/login")
		assert.Contains(t, rec.Header().Get("Location"), "access_denied")
	})
}

func TestTaskActions(t *testing.T) {
	t.Run("Adding a task should persist it and redirect with a notice.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, false)

		env.repo.On("CreateTask", mock.Anything, mock.MatchedBy(func(task model.Task) bool {
			return task.Title == "Pay invoices"
		})).Once().Return(nil)

		form := url.Values{"title": {"  Pay invoices  "}}
		req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := env.do(req)

		assert.Equal(http.StatusSeeOther, rec.Code)
		assert.Contains(rec.Header().Get("Location"), "notice=")
		env.repo.AssertExpectations(t)
	})

	t.Run("Adding a task with a blank title should redirect with an error.", func(t *testing.T) {
		env := newTestEnv(t, false)

		form := url.Values{"title": {"   "}}
		req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := env.do(req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "error=")
	})

	t.Run("Toggling a missing task should redirect with an error.", func(t *testing.T) {
		env := newTestEnv(t, false)

		env.repo.On("GetTask", mock.Anything, "missing").Once().Return(nil, model.ErrNotFound)

		rec := env.do(httptest.NewRequest(http.MethodPost, "/tasks/missing/toggle", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "error=")
	})

	t.Run("Deleting a task should redirect with a notice.", func(t *testing.T) {
		env := newTestEnv(t, false)

		env.repo.On("DeleteTasks", mock.Anything, []string{"t1"}).Once().Return(1, nil)

		rec := env.do(httptest.NewRequest(http.MethodPost, "/tasks/t1/delete", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), url.QueryEscape("Task deleted."))
		env.repo.AssertExpectations(t)
	})

	t.Run("Deleting a missing task should redirect with an error.", func(t *testing.T) {
		env := newTestEnv(t, false)

		env.repo.On("DeleteTasks", mock.Anything, []string{"missing"}).Once().Return(0, nil)

		rec := env.do(httptest.NewRequest(http.MethodPost, "/tasks/missing/delete", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), url.QueryEscape("Task not found."))
	})

	t.Run("Deleting completed tasks should report how many went away.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, false)

		now := time.Now().UTC()
		env.repo.On("ListTasks", mock.Anything, true).Once().Return([]model.Task{
			{ID: "t1", Title: "Open", CreatedAt: now},
			{ID: "t2", Title: "Done", CreatedAt: now, CompletedAt: &now},
		}, nil)
		env.repo.On("DeleteTasks", mock.Anything, []string{"t2"}).Once().Return(1, nil)

		rec := env.do(httptest.NewRequest(http.MethodPost, "/tasks/delete-completed", nil))

		assert.Equal(http.StatusSeeOther, rec.Code)
		assert.Contains(rec.Header().Get("Location"), url.QueryEscape("Deleted 1 completed task(s)."))
		env.repo.AssertExpectations(t)
	})
}

func TestSearchPage(t *testing.T) {
	t.Run("A query should render its hits with paths relative to the root.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, false)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/search?q=hello", nil))

		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "a.txt")
		assert.NotContains(rec.Body.String(), "b.txt")
	})

	t.Run("A regex query should match patterns the plain substring mode would miss.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, false)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/search?q=hel%2Bo+wor&regex=1", nil))

		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "a.txt")
		assert.NotContains(rec.Body.String(), "b.txt")
	})

	t.Run("A case-sensitive query should not fold case.", func(t *testing.T) {
		env := newTestEnv(t, false)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/search?q=HELLO&case=1", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Hits: 0")
	})

	t.Run("An invalid regex should render the form with an error notice.", func(t *testing.T) {
		env := newTestEnv(t, false)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/search?q=%28%5B&regex=1", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Search failed")
	})

	t.Run("Without a query the form should render with no hits.", func(t *testing.T) {
		env := newTestEnv(t, false)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/search", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Hits: 0")
	})
}

func TestInsightsPage(t *testing.T) {
	t.Run("Generating a report should render the non-AI baseline.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, false)

		env.repo.On("ListTasks", mock.Anything, true).Once().Return([]model.Task{
			{ID: "t1", Title: "Open task", CreatedAt: time.Now().UTC()},
		}, nil)

		form := url.Values{"question": {"What should I focus on?"}}
		req := httptest.NewRequest(http.MethodPost, "/insights", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := env.do(req)

		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "Open tasks")
		env.repo.AssertExpectations(t)
	})
}

func TestOAuthCallback(t *testing.T) {
	t.Run("A login callback should set a session cookie and land on the inbox.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, true)

		state, err := auth.SignState(testSecret, auth.FlowLogin, "", 0)
		require.NoError(t, err)

		token := &oauth2.Token{AccessToken: "at"}
		env.drive.On("Exchange", mock.Anything, "the-code").Once().Return(token, nil)
		env.drive.On("FetchUserInfo", mock.Anything, token).Once().Return(&googledrive.UserInfo{
			Email: "user@example.com", Name: "User",
		}, nil)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/?code=the-code&state="+url.QueryEscape(state), nil))

		assert.Equal(http.StatusSeeOther, rec.Code)
		assert.Equal("/", rec.Header().Get("Location"))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal("taskdash_session", cookies[0].Name)

		claims, err := auth.VerifySession(testSecret, cookies[0].Value)
		require.NoError(t, err)
		assert.Equal("user@example.com", claims.Email)
		env.drive.AssertExpectations(t)
	})

	t.Run("A drive callback should store the refresh token.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, true)

		state, err := auth.SignState(testSecret, auth.FlowDrive, "user@example.com", 0)
		require.NoError(t, err)

		token := &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}
		env.drive.On("Exchange", mock.Anything, "the-code").Once().Return(token, nil)
		env.drive.On("FetchUserInfo", mock.Anything, token).Once().Return(&googledrive.UserInfo{
			Email: "user@example.com",
		}, nil)
		env.repo.On("UpsertOAuthToken", mock.Anything, mock.MatchedBy(func(tok model.OAuthToken) bool {
			return tok.Provider == model.ProviderGoogleDrive &&
				tok.UserEmail == "user@example.com" &&
				tok.RefreshToken == "rt"
		})).Once().Return(nil)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/?code=the-code&state="+url.QueryEscape(state), nil))

		assert.Equal(http.StatusSeeOther, rec.Code)
		assert.Contains(rec.Header().Get("Location"), "/drive")
		env.repo.AssertExpectations(t)
		env.drive.AssertExpectations(t)
	})

	t.Run("A drive callback without a refresh token should not store anything.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, true)

		state, err := auth.SignState(testSecret, auth.FlowDrive, "user@example.com", 0)
		require.NoError(t, err)

		token := &oauth2.Token{AccessToken: "at"}
		env.drive.On("Exchange", mock.Anything, "the-code").Once().Return(token, nil)
		env.drive.On("FetchUserInfo", mock.Anything, token).Once().Return(&googledrive.UserInfo{
			Email: "user@example.com",
		}, nil)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/?code=the-code&state="+url.QueryEscape(state), nil))

		assert.Equal(http.StatusSeeOther, rec.Code)
		assert.Contains(rec.Header().Get("Location"), "error=")
		env.repo.AssertNotCalled(t, "UpsertOAuthToken", mock.Anything, mock.Anything)
	})

	t.Run("A tampered state should bounce back to login.", func(t *testing.T) {
		env := newTestEnv(t, true)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/?code=the-code&state=garbage", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "/login")
	})
}

func TestDrivePages(t *testing.T) {
	t.Run("The data sources tab should show connection status.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, true)

		env.repo.On("GetOAuthToken", mock.Anything, model.ProviderGoogleDrive, "user@example.com").
			Once().Return(nil, model.ErrNotFound)

		rec := env.do(sessionRequest(t, http.MethodGet, "/drive", nil))

		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "Not connected")
		assert.Contains(rec.Body.String(), "Connect Google Drive")
	})

	t.Run("Searching drive should list the files behind the stored token.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, true)

		stored := &model.OAuthToken{
			Provider: model.ProviderGoogleDrive, UserEmail: "user@example.com", RefreshToken: "rt",
		}
		env.repo.On("GetOAuthToken", mock.Anything, model.ProviderGoogleDrive, "user@example.com").
			Return(stored, nil)
		env.drive.On("ListFiles", mock.Anything, "rt", "name contains 'invoice'", int64(15)).
			Once().Return([]googledrive.File{
			{ID: "f1", Name: "invoice.pdf", MimeType: "application/pdf", Size: 1234},
		}, nil)

		form := url.Values{"q": {"name contains 'invoice'"}}
		rec := env.do(sessionRequest(t, http.MethodPost, "/drive/search", form))

		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "invoice.pdf")
		env.drive.AssertExpectations(t)
	})

	t.Run("Analyzing a drive file should render the AI output.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, true)

		stored := &model.OAuthToken{
			Provider: model.ProviderGoogleDrive, UserEmail: "user@example.com", RefreshToken: "rt",
		}
		env.repo.On("GetOAuthToken", mock.Anything, model.ProviderGoogleDrive, "user@example.com").
			Return(stored, nil)
		env.drive.On("DownloadText", mock.Anything, "rt", "f1", "text/plain", int64(50_000)).
			Once().Return("quarterly numbers: 42", nil)

		form := url.Values{
			"file_id":   {"f1"},
			"mime_type": {"text/plain"},
			"name":      {"report.txt"},
		}
		rec := env.do(sessionRequest(t, http.MethodPost, "/drive/analyze", form))

		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "AI analysis: report.txt")
		env.drive.AssertExpectations(t)
	})

	t.Run("Disconnecting should delete the stored token.", func(t *testing.T) {
		env := newTestEnv(t, true)

		env.repo.On("DeleteOAuthToken", mock.Anything, model.ProviderGoogleDrive, "user@example.com").
			Once().Return(nil)

		rec := env.do(sessionRequest(t, http.MethodPost, "/drive/disconnect", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "notice=")
		env.repo.AssertExpectations(t)
	})
}

func TestLoginPage(t *testing.T) {
	t.Run("The login page should link to Google with a signed state.", func(t *testing.T) {
		assert := assert.New(t)
		env := newTestEnv(t, true)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/login", nil))

		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "accounts.google.com")
	})

	t.Run("Without OAuth configured the login page should redirect home.", func(t *testing.T) {
		env := newTestEnv(t, false)

		rec := env.do(httptest.NewRequest(http.MethodGet, "/login", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})
}
