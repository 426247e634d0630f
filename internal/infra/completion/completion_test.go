package completion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	provider     string
	outputLength int
	err          error
}

type fakeMetrics struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeMetrics) RecordCompletion(provider string, _ time.Duration, outputLength int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{provider: provider, outputLength: outputLength, err: err})
}

func (f *fakeMetrics) last(t *testing.T) recordedCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func testConfig(baseURL string) Config {
	return Config{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Temperature: 0.7,
		MaxTokens:   256,
		Timeout:     5 * time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.APIKey = "" }, wantErr: "api key"},
		{name: "zero max tokens", mutate: func(c *Config) { c.MaxTokens = 0 }, wantErr: "max tokens"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: "timeout"},
		{name: "temperature too high", mutate: func(c *Config) { c.Temperature = 2.5 }, wantErr: "temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGemini_Complete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"A marketplace for used lab gear"}],"role":"model"},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Model = "gemini-test"
	g, err := NewGemini(context.Background(), cfg)
	require.NoError(t, err)
	fake := &fakeMetrics{}
	g.metrics = fake

	out, err := g.Complete(context.Background(), "Give me an idea about biotech")
	require.NoError(t, err)
	assert.Equal(t, "A marketplace for used lab gear", out)
	assert.Equal(t, "gemini", g.Name())

	assert.Contains(t, mustJSON(t, gotBody), "Give me an idea about biotech")
	call := fake.last(t)
	assert.Equal(t, "gemini", call.provider)
	assert.NoError(t, call.err)
	assert.Equal(t, len("A marketplace for used lab gear"), call.outputLength)
}

func TestGemini_Complete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"code":500,"message":"backend error","status":"INTERNAL"}}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)
	fake := &fakeMetrics{}
	g.metrics = fake

	_, err = g.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini api error")
	assert.Error(t, fake.last(t).err)
}

func TestNewGemini_DefaultModel(t *testing.T) {
	g, err := NewGemini(context.Background(), testConfig("http://127.0.0.1:0"))
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiModel, g.model)
}

func TestClaude_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var req struct {
			Model     string  `json:"model"`
			MaxTokens int     `json:"max_tokens"`
			Temp      float64 `json:"temperature"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 256, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temp, 0.0001)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Quiet headlines today."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Model = "claude-test"
	c, err := NewClaude(cfg)
	require.NoError(t, err)
	fake := &fakeMetrics{}
	c.metrics = fake

	out, err := c.Complete(context.Background(), "Summarize the news")
	require.NoError(t, err)
	assert.Equal(t, "Quiet headlines today.", out)
	assert.Equal(t, "claude", fake.last(t).provider)
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Drone-based vineyard audits"}, "finish_reason": "stop"}]
		}`)
	}))
	defer srv.Close()

	o, err := NewOpenAI(testConfig(srv.URL + "/v1"))
	require.NoError(t, err)
	fake := &fakeMetrics{}
	o.metrics = fake

	out, err := o.Complete(context.Background(), "Give me an idea")
	require.NoError(t, err)
	assert.Equal(t, "Drone-based vineyard audits", out)
	assert.Equal(t, DefaultOpenAIModel, o.model)
}

func TestOpenAI_Complete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
	}))
	defer srv.Close()

	o, err := NewOpenAI(testConfig(srv.URL + "/v1"))
	require.NoError(t, err)
	o.metrics = &fakeMetrics{}

	_, err = o.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestEngine_CircuitBreakerOpens(t *testing.T) {
	o, err := NewOpenAI(testConfig("http://127.0.0.1:0/v1"))
	require.NoError(t, err)
	fake := &fakeMetrics{}
	o.metrics = fake

	failing := func(context.Context, string) (string, error) {
		return "", io.ErrUnexpectedEOF
	}

	// DefaultConfig trips after 5 requests at >= 60% failure.
	for i := 0; i < 5; i++ {
		_, err := o.complete(context.Background(), "p", failing)
		require.Error(t, err)
	}

	_, err = o.complete(context.Background(), "p", failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.True(t, o.breaker.IsOpen())
}

func TestEngine_CanceledCallsDoNotTrip(t *testing.T) {
	o, err := NewOpenAI(testConfig("http://127.0.0.1:0/v1"))
	require.NoError(t, err)
	o.metrics = &fakeMetrics{}

	canceled := func(context.Context, string) (string, error) {
		return "", context.Canceled
	}
	for i := 0; i < 10; i++ {
		_, err := o.complete(context.Background(), "p", canceled)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "circuit breaker open")
	}
	assert.False(t, o.breaker.IsOpen())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
