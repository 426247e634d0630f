// Package completion provides single-shot text completion adapters for the
// Gemini, Claude and OpenAI APIs.
//
// Every adapter issues exactly one request per call: no retries, no
// streaming, no conversation state. Each provider has its own circuit
// breaker so a failing provider is rejected fast instead of hanging a cycle
// for the full timeout.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"kairos/internal/observability/logging"
	"kairos/internal/resilience/circuitbreaker"
	"kairos/internal/utils/text"
)

// Config holds the settings shared by every provider.
type Config struct {
	APIKey string

	// Model is the provider model identifier; empty selects the adapter default.
	Model string

	// BaseURL overrides the provider endpoint; empty selects the SDK default.
	BaseURL string

	Temperature float64
	MaxTokens   int

	// Timeout bounds one completion call.
	Timeout time.Duration

	// HTTPClient is optional.
	HTTPClient *http.Client
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("api key cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature)
	}
	return nil
}

func (c Config) withModel(defaultModel string) Config {
	if c.Model == "" {
		c.Model = defaultModel
	}
	return c
}

// breakerConfig excludes caller cancellation from the failure ratio.
func breakerConfig(cfg circuitbreaker.Config) circuitbreaker.Config {
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}
	return cfg
}

// caller performs the provider request without timeout or breaker.
type caller func(ctx context.Context, prompt string) (string, error)

// engine holds what all adapters share.
type engine struct {
	provider string
	model    string
	timeout  time.Duration
	breaker  *circuitbreaker.CircuitBreaker
	metrics  MetricsRecorder
}

// complete runs one call through the breaker, with the per-call timeout,
// request-scoped logging and metrics.
func (e *engine) complete(ctx context.Context, prompt string, call caller) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	requestID := uuid.New().String()
	logger := logging.FromContext(ctx).With(
		slog.String("request_id", requestID),
		slog.String("provider", e.provider),
		slog.String("model", e.model))

	logger.InfoContext(ctx, "Starting completion",
		slog.Int("prompt_length", text.CountRunes(prompt)))

	start := time.Now()
	out, err := circuitbreaker.Run(e.breaker, func() (string, error) {
		return call(ctx, prompt)
	})
	duration := time.Since(start)

	if err != nil {
		e.metrics.RecordCompletion(e.provider, duration, 0, err)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			logger.WarnContext(ctx, "Completion rejected, circuit breaker open",
				slog.String("state", e.breaker.State().String()))
			return "", fmt.Errorf("%s api unavailable: circuit breaker open: %w", e.provider, err)
		}
		logger.ErrorContext(ctx, "Completion failed",
			slog.Duration("duration", duration),
			slog.String("error", logging.SanitizeError(err)))
		return "", fmt.Errorf("%s api error: %w", e.provider, err)
	}

	outputLength := text.CountRunes(out)
	logger.InfoContext(ctx, "Completion finished",
		slog.Int("output_length", outputLength),
		slog.Duration("duration", duration))
	e.metrics.RecordCompletion(e.provider, duration, outputLength, nil)

	return out, nil
}
