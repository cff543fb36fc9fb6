package ai

import (
	"fmt"

	"taskdash/internal/log"
)

// Known provider preference values.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"
	ProviderStub       = "stub"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openai/gpt-4o-mini"
	defaultOpenAIModel       = "gpt-4o-mini"
	defaultOllamaBaseURL     = "http://localhost:11434"
	defaultOllamaModel       = "llama3.1"
)

// Config holds the environment-derived backend settings. Empty fields mean
// "not configured", defaults are applied only when a provider is selected.
type Config struct {
	// Provider forces a specific backend. Empty means credential-driven
	// selection: OpenRouter, then OpenAI, then Ollama, else the stub.
	Provider string

	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string

	OpenAIAPIKey string
	OpenAIModel  string

	OllamaBaseURL string
	OllamaModel   string

	Logger log.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ai.Factory"})
}

// NewFromConfig selects and builds the backend once at startup. The explicit
// provider preference wins, otherwise the first provider with credentials is
// used, in the fixed order OpenRouter, OpenAI, Ollama. Ollama counts as
// configured when either its base URL or model is set. With nothing
// configured the stub is returned.
func NewFromConfig(cfg Config) (Client, error) {
	cfg.defaults()

	switch cfg.Provider {
	case ProviderOpenRouter:
		return newOpenRouterFrom(cfg)
	case ProviderOpenAI:
		return newOpenAIFrom(cfg)
	case ProviderOllama:
		return newOllamaFrom(cfg)
	case ProviderStub:
		return NewStub(), nil
	case "":
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}

	switch {
	case cfg.OpenRouterAPIKey != "":
		return newOpenRouterFrom(cfg)
	case cfg.OpenAIAPIKey != "":
		return newOpenAIFrom(cfg)
	case cfg.OllamaBaseURL != "" || cfg.OllamaModel != "":
		return newOllamaFrom(cfg)
	}

	cfg.Logger.Infof("No AI backend configured, using deterministic stub")
	return NewStub(), nil
}

func newOpenRouterFrom(cfg Config) (Client, error) {
	if cfg.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}
	if cfg.OpenRouterModel == "" {
		cfg.OpenRouterModel = defaultOpenRouterModel
	}
	if cfg.OpenRouterBaseURL == "" {
		cfg.OpenRouterBaseURL = defaultOpenRouterBaseURL
	}
	cfg.Logger.Infof("Using OpenRouter backend (%s)", cfg.OpenRouterModel)
	return NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL)
}

func newOpenAIFrom(cfg Config) (Client, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = defaultOpenAIModel
	}
	cfg.Logger.Infof("Using OpenAI backend (%s)", cfg.OpenAIModel)
	return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
}

func newOllamaFrom(cfg Config) (Client, error) {
	if cfg.OllamaBaseURL == "" {
		cfg.OllamaBaseURL = defaultOllamaBaseURL
	}
	if cfg.OllamaModel == "" {
		cfg.OllamaModel = defaultOllamaModel
	}
	cfg.Logger.Infof("Using Ollama backend (%s at %s)", cfg.OllamaModel, cfg.OllamaBaseURL)
	return NewOllama(cfg.OllamaBaseURL, cfg.OllamaModel)
}
