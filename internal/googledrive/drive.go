// Package googledrive implements the Google OAuth flows and read-only Drive
// browsing used by the Data Sources tab.
package googledrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"taskdash/internal/log"
	"taskdash/internal/model"
)

const (
	// DriveScope is the read-only Drive access requested on connect.
	DriveScope = "https://www.googleapis.com/auth/drive.readonly"

	userinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	listTimeout     = 30 * time.Second
	downloadTimeout = 60 * time.Second
)

var loginScopes = []string{"openid", "email", "profile"}

// ServiceConfig is the configuration for the Google Drive service.
type ServiceConfig struct {
	ClientID     string
	ClientSecret string
	// AppBaseURL is the public base URL of the app. The OAuth redirect URI
	// is this URL with a trailing slash.
	AppBaseURL string
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.ClientID == "" {
		return fmt.Errorf("client id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client secret is required")
	}
	if c.AppBaseURL == "" {
		return fmt.Errorf("app base url is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "googledrive.Service"})
	return nil
}

// Service handles Google OAuth and Drive API access.
type Service struct {
	loginCfg *oauth2.Config
	driveCfg *oauth2.Config
	logger   log.Logger
}

// NewService creates a new Google Drive service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	redirect := RedirectURI(cfg.AppBaseURL)
	base := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
	}

	loginCfg := base
	loginCfg.Scopes = loginScopes

	driveCfg := base
	driveCfg.Scopes = append(append([]string{}, loginScopes...), DriveScope)

	return &Service{
		loginCfg: &loginCfg,
		driveCfg: &driveCfg,
		logger:   cfg.Logger,
	}, nil
}

// RedirectURI returns the OAuth redirect URI for an app base URL: the base
// URL with exactly one trailing slash.
func RedirectURI(appBaseURL string) string {
	return strings.TrimRight(appBaseURL, "/") + "/"
}

// LoginAuthURL returns the Google authorization URL for the login flow.
func (s *Service) LoginAuthURL(state string) string {
	return s.loginCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// DriveAuthURL returns the Google authorization URL for the Drive connect
// flow. Offline access with forced consent so Google returns a refresh token.
func (s *Service) DriveAuthURL(state string) string {
	return s.driveCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent select_account"),
	)
}

// Exchange swaps an authorization code for a token.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.driveCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("could not exchange code: %v: %w", err, model.ErrOAuth)
	}
	return token, nil
}

// UserInfo is the Google account information fetched after login.
type UserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// FetchUserInfo returns the account behind a freshly exchanged token.
func (s *Service) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch userinfo: %v: %w", err, model.ErrOAuth)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d: %w", resp.StatusCode, model.ErrOAuth)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("could not decode userinfo: %v: %w", err, model.ErrOAuth)
	}

	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	if info.Email == "" {
		return nil, fmt.Errorf("userinfo has no email: %w", model.ErrOAuth)
	}

	return &info, nil
}

// File is a Drive file entry.
type File struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime string
	Size         int64
}

// ListFiles lists Drive files for a stored refresh token, optionally
// filtered by a Drive query expression.
func (s *Service) ListFiles(ctx context.Context, refreshToken, query string, pageSize int64) ([]File, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	svc, err := s.driveService(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	call := svc.Files.List().
		PageSize(pageSize).
		Fields("files(id,name,mimeType,modifiedTime,size),nextPageToken")
	if q := strings.TrimSpace(query); q != "" {
		call = call.Q(q)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("could not list drive files: %w", err)
	}

	files := make([]File, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, File{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			ModifiedTime: f.ModifiedTime,
			Size:         f.Size,
		})
	}

	s.logger.Debugf("Listed %d drive files", len(files))
	return files, nil
}

// DownloadText fetches a Drive file as UTF-8 text, best effort. Google
// native documents are exported (text/plain, spreadsheets as text/csv),
// regular files are downloaded as-is. The result is capped at maxBytes.
func (s *Service) DownloadText(ctx context.Context, refreshToken, fileID, mimeType string, maxBytes int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	svc, err := s.driveService(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	var resp *http.Response
	if strings.HasPrefix(mimeType, "application/vnd.google-apps.") {
		exportMime := "text/plain"
		if strings.HasSuffix(mimeType, ".spreadsheet") {
			exportMime = "text/csv"
		}
		resp, err = svc.Files.Export(fileID, exportMime).Context(ctx).Download()
	} else {
		resp, err = svc.Files.Get(fileID).Context(ctx).Download()
	}
	if err != nil {
		return "", fmt.Errorf("could not download drive file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return "", fmt.Errorf("could not read drive file: %w", err)
	}

	return string(data), nil
}

// driveService builds a Drive API client over an auto-refreshing token
// source seeded with the stored refresh token.
func (s *Service) driveService(ctx context.Context, refreshToken string) (*drive.Service, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required: %w", model.ErrOAuth)
	}

	ts := s.driveCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	httpClient := oauth2.NewClient(ctx, ts)

	svc, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("could not create drive service: %w", err)
	}

	return svc, nil
}
