package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"kairos/internal/resilience/circuitbreaker"
)

// DefaultClaudeModel is used when no model is configured.
const DefaultClaudeModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// Claude completes prompts with Anthropic's Messages API.
type Claude struct {
	client anthropic.Client
	config Config
	engine
}

// NewClaude creates a Claude adapter. SDK-level retries are disabled so one
// Complete is one request.
func NewClaude(cfg Config) (*Claude, error) {
	cfg = cfg.withModel(DefaultClaudeModel)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid claude configuration: %w", err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	slog.Info("Initialized Claude completion adapter",
		slog.String("model", cfg.Model),
		slog.Float64("temperature", cfg.Temperature))

	return &Claude{
		client: anthropic.NewClient(opts...),
		config: cfg,
		engine: engine{
			provider: "claude",
			model:    cfg.Model,
			timeout:  cfg.Timeout,
			breaker:  circuitbreaker.New(breakerConfig(circuitbreaker.ClaudeAPIConfig())),
			metrics:  NewPrometheusMetrics(),
		},
	}, nil
}

// Name returns the provider name.
func (c *Claude) Name() string { return c.provider }

// Complete sends prompt as a single user message and returns the text blocks
// of the reply.
func (c *Claude) Complete(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, c.doComplete)
}

func (c *Claude) doComplete(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.config.Model),
		MaxTokens:   int64(c.config.MaxTokens),
		Temperature: anthropic.Float(c.config.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	if len(message.Content) == 0 {
		return "", errors.New("claude api returned empty response")
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}
