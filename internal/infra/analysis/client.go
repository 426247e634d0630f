// Package analysis is the HTTP client for the remote idea analysis service.
//
// The service takes one product idea and answers with three free-text
// reports (viability, red team, action plan). A call can run for minutes, so
// the client has a long timeout and never retries: a cycle issues at most one
// analysis request.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"kairos/internal/domain/entity"
	"kairos/internal/observability/logging"
	"kairos/internal/observability/metrics"
	"kairos/internal/observability/tracing"
	"kairos/internal/resilience/circuitbreaker"
	"kairos/internal/utils/text"
)

// DefaultTimeout bounds one analysis call.
const DefaultTimeout = 600 * time.Second

// maxErrorBody caps how many runes of an error response are kept in the
// error text.
const maxErrorBody = 512

// Config contains configuration for the analysis client.
type Config struct {
	// BaseURL is the service root; "/analyze" is appended.
	BaseURL string

	// Timeout is the HTTP request timeout for one analysis call
	Timeout time.Duration
}

// Client calls POST {base}/analyze.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// request is the JSON body sent to the service.
type request struct {
	ProductIdea string `json:"product_idea"`
}

// response is the JSON body returned by the service. Every field is optional.
type response struct {
	ViabilityReport *string `json:"viability_report"`
	RedTeamReport   *string `json:"red_team_report"`
	ActionPlan      *string `json:"action_plan"`
}

// ClientError represents a 4xx answer from the analysis service.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx answer from the analysis service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// NewClient creates a Client. An empty BaseURL is rejected.
func NewClient(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("analysis base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: tracing.NewTransport(http.DefaultTransport),
		},
		circuitBreaker: circuitbreaker.New(circuitbreaker.AnalysisAPIConfig()),
	}, nil
}

// Analyze sends idea to the service. Every failure is returned as
// *entity.AnalysisError; sections missing from the answer are "N/A".
func (c *Client) Analyze(ctx context.Context, idea string) (entity.AnalysisResult, error) {
	requestID := uuid.New().String()
	logger := logging.FromContext(ctx).With(
		slog.String("request_id", requestID),
		slog.String("service", "analysis"))

	logger.InfoContext(ctx, "Sending idea for analysis",
		slog.String("endpoint", c.endpoint()),
		slog.Duration("timeout", c.config.Timeout))

	start := time.Now()
	result, err := circuitbreaker.Run(c.circuitBreaker, func() (entity.AnalysisResult, error) {
		return c.doAnalyze(ctx, requestID, idea)
	})
	duration := time.Since(start)

	if err != nil {
		analysisErr := toAnalysisError(err)
		metrics.RecordAnalysisResult(resultLabel(analysisErr))
		logger.ErrorContext(ctx, "Analysis failed",
			slog.Int("status_code", analysisErr.StatusCode),
			slog.Duration("duration", duration),
			slog.String("error", logging.SanitizeError(analysisErr)))
		return entity.AnalysisResult{}, analysisErr
	}

	metrics.RecordAnalysisResult("2xx")
	logger.InfoContext(ctx, "Analysis completed",
		slog.Duration("duration", duration),
		slog.Bool("viability_present", result.Viability != entity.NotAvailable),
		slog.Bool("risk_present", result.Risk != entity.NotAvailable),
		slog.Bool("action_plan_present", result.ActionPlan != entity.NotAvailable))
	return result, nil
}

func (c *Client) endpoint() string {
	return c.config.BaseURL + "/analyze"
}

// doAnalyze performs one request without the circuit breaker.
func (c *Client) doAnalyze(ctx context.Context, requestID, idea string) (entity.AnalysisResult, error) {
	payload, err := json.Marshal(request{ProductIdea: idea})
	if err != nil {
		return entity.AnalysisResult{}, fmt.Errorf("marshal analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return entity.AnalysisResult{}, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return entity.AnalysisResult{}, fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.AnalysisResult{}, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return entity.AnalysisResult{}, &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("analysis service client error: %s", snippet(body)),
		}
	case resp.StatusCode >= 500:
		return entity.AnalysisResult{}, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("analysis service server error: %s", snippet(body)),
		}
	default:
		return entity.AnalysisResult{}, &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status code %d: %s", resp.StatusCode, snippet(body)),
		}
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return entity.AnalysisResult{}, fmt.Errorf("decode analysis response: %w", err)
	}

	return entity.AnalysisResult{
		Viability:  deref(decoded.ViabilityReport),
		Risk:       deref(decoded.RedTeamReport),
		ActionPlan: deref(decoded.ActionPlan),
	}.WithDefaults(), nil
}

// toAnalysisError wraps err, keeping the HTTP status when there was one.
func toAnalysisError(err error) *entity.AnalysisError {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return &entity.AnalysisError{StatusCode: clientErr.StatusCode, Err: err}
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return &entity.AnalysisError{StatusCode: serverErr.StatusCode, Err: err}
	}
	return &entity.AnalysisError{Err: err}
}

func resultLabel(err *entity.AnalysisError) string {
	switch {
	case err.StatusCode != 0:
		return fmt.Sprintf("%dxx", err.StatusCode/100)
	case errors.Is(err, circuitbreaker.ErrOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return "timeout"
	default:
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return "malformed"
		}
		return "error"
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func snippet(body []byte) string {
	return text.Truncate(strings.TrimSpace(string(body)), maxErrorBody)
}
