package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"kairos/internal/resilience/circuitbreaker"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini completes prompts with the Gemini API through google.golang.org/genai.
type Gemini struct {
	client *genai.Client
	config Config
	engine
}

// NewGemini creates a Gemini adapter. The genai client is built here, once,
// and reused for every call.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	cfg = cfg.withModel(DefaultGeminiModel)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gemini configuration: %w", err)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	slog.Info("Initialized Gemini completion adapter",
		slog.String("model", cfg.Model),
		slog.Float64("temperature", cfg.Temperature))

	return &Gemini{
		client: client,
		config: cfg,
		engine: engine{
			provider: "gemini",
			model:    cfg.Model,
			timeout:  cfg.Timeout,
			breaker:  circuitbreaker.New(breakerConfig(circuitbreaker.GeminiAPIConfig())),
			metrics:  NewPrometheusMetrics(),
		},
	}, nil
}

// Name returns the provider name.
func (g *Gemini) Name() string { return g.provider }

// Complete sends prompt as a single user turn and returns the response text.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, prompt, g.doComplete)
}

func (g *Gemini) doComplete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.config.Temperature)),
		MaxOutputTokens: int32(g.config.MaxTokens),
	})
	if err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini api returned no candidates")
	}

	return resp.Text(), nil
}
