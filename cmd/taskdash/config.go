package main

import (
	"github.com/alecthomas/kingpin/v2"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// CmdConfig represents the application configuration, read from flags and
// environment variables.
type CmdConfig struct {
	Debug      bool
	NoColor    bool
	LoggerType string

	Port       string
	DBPath     string
	SearchRoot string

	AIProvider        string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	OpenAIAPIKey      string
	OpenAIModel       string
	OllamaBaseURL     string
	OllamaModel       string

	AppBaseURL         string
	GoogleClientID     string
	GoogleClientSecret string
	AuthSecret         string
	AllowedEmails      string
	AllowedDomains     string
}

// NewCmdConfig parses the command line arguments into the app configuration.
func NewCmdConfig(args []string) (*CmdConfig, error) {
	c := &CmdConfig{}
	app := kingpin.New("taskdash", "Single-user dashboard: task inbox, file search and AI insights.")

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	app.Flag("port", "Port the HTTP server listens on.").Envar("PORT").Default("8080").StringVar(&c.Port)
	app.Flag("db-path", "Path to the SQLite database file.").Envar("CFA_DB_PATH").Default(".local/tasks.db").StringVar(&c.DBPath)
	app.Flag("search-root", "Root folder the file search walks.").Envar("CFA_AI_ROOT").Default(".").StringVar(&c.SearchRoot)

	app.Flag("ai-provider", "Force an AI backend instead of credential-driven selection.").Envar("CFA_AI_PROVIDER").StringVar(&c.AIProvider)
	app.Flag("openrouter-api-key", "OpenRouter API key.").Envar("OPENROUTER_API_KEY").StringVar(&c.OpenRouterAPIKey)
	app.Flag("openrouter-model", "OpenRouter model.").Envar("OPENROUTER_MODEL").StringVar(&c.OpenRouterModel)
	app.Flag("openrouter-base-url", "OpenRouter base URL.").Envar("OPENROUTER_BASE_URL").StringVar(&c.OpenRouterBaseURL)
	app.Flag("openai-api-key", "OpenAI API key.").Envar("OPENAI_API_KEY").StringVar(&c.OpenAIAPIKey)
	app.Flag("openai-model", "OpenAI model.").Envar("OPENAI_MODEL").StringVar(&c.OpenAIModel)
	app.Flag("ollama-base-url", "Ollama base URL.").Envar("OLLAMA_BASE_URL").StringVar(&c.OllamaBaseURL)
	app.Flag("ollama-model", "Ollama model.").Envar("OLLAMA_MODEL").StringVar(&c.OllamaModel)

	app.Flag("app-base-url", "Public base URL of the app, used as the OAuth redirect target.").Envar("APP_BASE_URL").StringVar(&c.AppBaseURL)
	app.Flag("google-client-id", "Google OAuth client ID.").Envar("GOOGLE_CLIENT_ID").StringVar(&c.GoogleClientID)
	app.Flag("google-client-secret", "Google OAuth client secret.").Envar("GOOGLE_CLIENT_SECRET").StringVar(&c.GoogleClientSecret)
	app.Flag("auth-secret", "Secret used to sign OAuth state and session tokens.").Envar("APP_AUTH_SECRET").StringVar(&c.AuthSecret)
	app.Flag("allowed-emails", "Comma-separated Google accounts allowed to log in.").Envar("ALLOWED_EMAILS").StringVar(&c.AllowedEmails)
	app.Flag("allowed-email-domains", "Comma-separated email domains allowed to log in.").Envar("ALLOWED_EMAIL_DOMAINS").StringVar(&c.AllowedDomains)

	_, err := app.Parse(args)
	if err != nil {
		return nil, err
	}

	return c, nil
}
