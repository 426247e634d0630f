package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"kairos/internal/resilience/circuitbreaker"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAI completes prompts with the Chat Completions API.
type OpenAI struct {
	client *openai.Client
	config Config
	engine
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	cfg = cfg.withModel(DefaultOpenAIModel)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid openai configuration: %w", err)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	slog.Info("Initialized OpenAI completion adapter",
		slog.String("model", cfg.Model),
		slog.Float64("temperature", cfg.Temperature))

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		engine: engine{
			provider: "openai",
			model:    cfg.Model,
			timeout:  cfg.Timeout,
			breaker:  circuitbreaker.New(breakerConfig(circuitbreaker.OpenAIAPIConfig())),
			metrics:  NewPrometheusMetrics(),
		},
	}, nil
}

// Name returns the provider name.
func (o *OpenAI) Name() string { return o.provider }

// Complete sends prompt as a single user message.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	return o.complete(ctx, prompt, o.doComplete)
}

func (o *OpenAI) doComplete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.config.Model,
		Temperature: float32(o.config.Temperature),
		MaxTokens:   o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		return "", err
	}

	// Guard the index; some compatible servers answer 200 with no choices.
	if len(resp.Choices) == 0 {
		return "", errors.New("openai api returned empty response")
	}

	return resp.Choices[0].Message.Content, nil
}
