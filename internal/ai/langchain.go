package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"taskdash/internal/model"
)

// langchainClient adapts a langchaingo model to the Client interface.
type langchainClient struct {
	name  string
	model llms.Model
}

// NewOpenRouter creates a client for an OpenRouter (OpenAI-compatible)
// chat-completion endpoint.
func NewOpenRouter(apiKey, modelName, baseURL string) (Client, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create openrouter client: %w", err)
	}

	return &langchainClient{name: "openrouter:" + modelName, model: llm}, nil
}

// NewOpenAI creates a client for the OpenAI chat-completion API.
func NewOpenAI(apiKey, modelName string) (Client, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create openai client: %w", err)
	}

	return &langchainClient{name: "openai:" + modelName, model: llm}, nil
}

// NewOllama creates a client for a local Ollama HTTP endpoint.
func NewOllama(baseURL, modelName string) (Client, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create ollama client: %w", err)
	}

	return &langchainClient{name: "ollama:" + modelName, model: llm}, nil
}

func (c *langchainClient) Name() string { return c.name }

func (c *langchainClient) Chat(ctx context.Context, messages []Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	resp, err := c.model.GenerateContent(ctx, content, llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("%s call failed: %v: %w", c.name, err, model.ErrBackend)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices: %w", c.name, model.ErrBackend)
	}

	return resp.Choices[0].Content, nil
}
