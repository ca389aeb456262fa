// Package openai provides a chat-completion answer generator on an
// OpenAI-compatible API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"ragqa/internal/domain"
	"ragqa/internal/logger"
)

var _ domain.Generator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the chat generator.
type Config struct {
	// BaseURL can point at Azure OpenAI or any compatible server.
	BaseURL   string
	APIKeyEnv string
	// APIKey takes precedence over APIKeyEnv when set.
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Generator answers prompts with a single chat completion.
type Generator struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewGenerator creates a chat generator.
func NewGenerator(cfg Config) (*Generator, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("openai: API key is required (env %s)", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	apiCfg := openai.DefaultConfig(key)
	apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Generator{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate sends the rendered prompt as one user message.
func (g *Generator) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt.Text},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	resp, err := g.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	logger.Debug("chat completion used %d tokens (finish: %s)", resp.Usage.TotalTokens, resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
