package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kairos/internal/domain/entity"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, Timeout: timeout})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "  "})
	require.Error(t, err)
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "https://adversary.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://adversary.example.com/analyze", c.endpoint())
	assert.Equal(t, DefaultTimeout, c.config.Timeout)
}

func TestClient_Analyze_Success(t *testing.T) {
	var got request
	var requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		requestID = r.Header.Get("X-Request-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"viability_report":"Strong demand","red_team_report":"Privacy risk","action_plan":"Pilot in one city"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5*time.Second)
	result, err := c.Analyze(context.Background(), "Autonomous compost collection")
	require.NoError(t, err)

	assert.Equal(t, "Autonomous compost collection", got.ProductIdea)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, entity.AnalysisResult{
		Viability:  "Strong demand",
		Risk:       "Privacy risk",
		ActionPlan: "Pilot in one city",
	}, result)
}

func TestClient_Analyze_MissingFieldsDefaultToNA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"viability_report":"Only this"}`))
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL, 5*time.Second).Analyze(context.Background(), "idea")
	require.NoError(t, err)

	assert.Equal(t, "Only this", result.Viability)
	assert.Equal(t, entity.NotAvailable, result.Risk)
	assert.Equal(t, entity.NotAvailable, result.ActionPlan)
}

func TestClient_Analyze_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantText   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "model crashed", wantStatus: 500, wantText: "model crashed"},
		{name: "client error", status: http.StatusUnprocessableEntity, body: `{"detail":"missing product_idea"}`, wantStatus: 422, wantText: "missing product_idea"},
		{name: "malformed json", status: http.StatusOK, body: "<html>not json</html>", wantStatus: 0, wantText: "decode analysis response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, 5*time.Second).Analyze(context.Background(), "idea")
			require.Error(t, err)

			var analysisErr *entity.AnalysisError
			require.True(t, errors.As(err, &analysisErr))
			assert.Equal(t, tt.wantStatus, analysisErr.StatusCode)
			assert.Contains(t, err.Error(), tt.wantText)
			assert.ErrorIs(t, err, entity.ErrAnalysis)
		})
	}
}

func TestClient_Analyze_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(t, srv.URL, 50*time.Millisecond).Analyze(context.Background(), "idea")
	require.Error(t, err)

	var analysisErr *entity.AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	assert.Zero(t, analysisErr.StatusCode)
	assert.Equal(t, "timeout", resultLabel(analysisErr))
}

func TestClient_Analyze_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5*time.Second)
	for i := 0; i < 3; i++ {
		_, err := c.Analyze(context.Background(), "idea")
		require.Error(t, err)
	}

	_, err := c.Analyze(context.Background(), "idea")
	require.Error(t, err)

	var analysisErr *entity.AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	assert.Equal(t, "circuit_open", resultLabel(analysisErr))
	assert.Equal(t, int32(3), calls.Load())
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		name string
		err  *entity.AnalysisError
		want string
	}{
		{name: "4xx", err: &entity.AnalysisError{StatusCode: 404, Err: errors.New("x")}, want: "4xx"},
		{name: "5xx", err: &entity.AnalysisError{StatusCode: 503, Err: errors.New("x")}, want: "5xx"},
		{name: "deadline", err: &entity.AnalysisError{Err: context.DeadlineExceeded}, want: "timeout"},
		{name: "syntax", err: &entity.AnalysisError{Err: &json.SyntaxError{}}, want: "malformed"},
		{name: "other", err: &entity.AnalysisError{Err: errors.New("boom")}, want: "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultLabel(tt.err))
		})
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantRunes int
	}{
		{name: "short", body: "  bad request  ", wantRunes: len("bad request")},
		{name: "ascii cut", body: strings.Repeat("x", 2000), wantRunes: maxErrorBody},
		{name: "multibyte cut", body: strings.Repeat("é", 1000), wantRunes: maxErrorBody},
		{name: "cut inside a rune", body: "a" + strings.Repeat("日本", 400), wantRunes: maxErrorBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := snippet([]byte(tt.body))
			assert.True(t, utf8.ValidString(got), "snippet must not split a rune")
			assert.Equal(t, tt.wantRunes, utf8.RuneCountInString(got))
		})
	}
}
