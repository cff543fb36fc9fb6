package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"taskdash/internal/ai"
	"taskdash/internal/app/insights"
	"taskdash/internal/app/taskagent"
	"taskdash/internal/app/tasks"
	"taskdash/internal/auth"
	"taskdash/internal/googledrive"
	"taskdash/internal/log"
	loglogrus "taskdash/internal/log/logrus"
	"taskdash/internal/search"
	"taskdash/internal/server"
	"taskdash/internal/storage/sqlite"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"

	gracefulShutdownTimeout = 10 * time.Second
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := NewCmdConfig(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	logger := getLogger(cfg, stderr)

	// Storage.
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not open storage: %w", err)
	}
	defer repo.Close()

	// File search.
	searcher, err := search.NewSearcher(search.SearcherConfig{
		Root:   cfg.SearchRoot,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create searcher: %w", err)
	}

	// AI backend, selected once at startup.
	aiClient, err := ai.NewFromConfig(ai.Config{
		Provider:          cfg.AIProvider,
		OpenRouterAPIKey:  cfg.OpenRouterAPIKey,
		OpenRouterModel:   cfg.OpenRouterModel,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		OpenAIAPIKey:      cfg.OpenAIAPIKey,
		OpenAIModel:       cfg.OpenAIModel,
		OllamaBaseURL:     cfg.OllamaBaseURL,
		OllamaModel:       cfg.OllamaModel,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("could not create AI backend: %w", err)
	}
	logger.Infof("AI backend: %s", aiClient.Name())

	// Application services.
	tasksSvc, err := tasks.NewService(tasks.ServiceConfig{Repository: repo, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create tasks service: %w", err)
	}

	insightsSvc, err := insights.NewService(insights.ServiceConfig{
		Searcher:   searcher,
		Repository: repo,
		AIClient:   aiClient,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create insights service: %w", err)
	}

	plannerSvc, err := taskagent.NewService(taskagent.ServiceConfig{
		Repository: repo,
		AIClient:   aiClient,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task agent service: %w", err)
	}

	// Google OAuth and Drive, optional.
	var driveSvc server.DriveService
	authSecret := cfg.AuthSecret
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" && cfg.AppBaseURL != "" {
		if authSecret == "" {
			// Same fallback the login flow documents: the client secret
			// still signs state/session tokens when no dedicated secret
			// is set.
			authSecret = cfg.GoogleClientSecret
			logger.Warningf("APP_AUTH_SECRET not set, falling back to the Google client secret")
		}

		svc, err := googledrive.NewService(googledrive.ServiceConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			AppBaseURL:   cfg.AppBaseURL,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("could not create google drive service: %w", err)
		}
		driveSvc = svc
		logger.Infof("Google OAuth enabled (redirect URI %s)", googledrive.RedirectURI(cfg.AppBaseURL))
	} else {
		logger.Infof("Google OAuth not configured, login disabled")
	}

	// Web UI.
	srv, err := server.NewService(server.ServiceConfig{
		Tasks:      tasksSvc,
		Insights:   insightsSvc,
		Planner:    plannerSvc,
		Searcher:   searcher,
		Repository: repo,
		AIClient:   aiClient,
		Drive:      driveSvc,
		AuthSecret: authSecret,
		Allowlist:  auth.NewAllowlist(cfg.AllowedEmails, cfg.AllowedDomains),
		Debug:      cfg.Debug,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				logger.Infof("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// HTTP server.
	{
		httpServer := &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: srv.Handler(),
		}

		g.Add(
			func() error {
				logger.Infof("Listening on %s (search root %s)", httpServer.Addr, searcher.Root())
				err := httpServer.ListenAndServe()
				if err != nil && err != http.ErrServerClosed {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Could not shutdown http server gracefully: %s", err)
				}
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(cfg *CmdConfig, stderr io.Writer) log.Logger {
	logrusLog := logrus.New()
	logrusLog.Out = stderr
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if cfg.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	switch cfg.LoggerType {
	case LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !cfg.NoColor,
			DisableColors: cfg.NoColor,
		})
	case LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled")

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
