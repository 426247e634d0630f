package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "simple validation error",
			field:    "topic",
			message:  "required",
			expected: "validation error on field 'topic': required",
		},
		{
			name:     "empty message",
			field:    "share_mode",
			message:  "",
			expected: "validation error on field 'share_mode': ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ValidationError{Field: tt.field, Message: tt.message}
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestTypedErrors_MatchSentinels(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
		others   []error
	}{
		{
			name:     "auth",
			err:      &AuthError{Op: "resolve", Err: cause},
			sentinel: ErrAuth,
			others:   []error{ErrGeneration, ErrAnalysis, ErrPublish},
		},
		{
			name:     "generation",
			err:      &GenerationError{Op: "idea", Err: cause},
			sentinel: ErrGeneration,
			others:   []error{ErrAuth, ErrAnalysis, ErrPublish},
		},
		{
			name:     "analysis",
			err:      &AnalysisError{StatusCode: 502, Err: cause},
			sentinel: ErrAnalysis,
			others:   []error{ErrAuth, ErrGeneration, ErrPublish},
		},
		{
			name:     "publish",
			err:      &PublishError{Op: "create", Title: "t", Err: cause},
			sentinel: ErrPublish,
			others:   []error{ErrAuth, ErrGeneration, ErrAnalysis},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, tt.err, cause, "cause must stay reachable")
			for _, other := range tt.others {
				assert.NotErrorIs(t, tt.err, other)
			}
		})
	}
}

func TestAnalysisError_Error(t *testing.T) {
	withStatus := &AnalysisError{StatusCode: 503, Err: errors.New("unavailable")}
	assert.Equal(t, "analysis: status 503: unavailable", withStatus.Error())

	timeout := &AnalysisError{Err: context.DeadlineExceeded}
	assert.Equal(t, "analysis: context deadline exceeded", timeout.Error())
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)
}

func TestPublishError_Error(t *testing.T) {
	created := &PublishError{Op: "insert", Title: "Report", DocumentID: "doc-1", Err: errors.New("bad request")}
	assert.Equal(t, `publish "Report": insert (document doc-1): bad request`, created.Error())

	quota := &PublishError{Op: "create", Title: "Report", QuotaExceeded: true, Err: ErrQuotaExceeded}
	assert.Equal(t, `publish "Report": create: storage quota exceeded`, quota.Error())
	assert.ErrorIs(t, quota, ErrQuotaExceeded)
}

func TestPublishError_As(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &PublishError{Op: "move", Title: "x", DocumentID: "d"})

	var pubErr *PublishError
	if assert.ErrorAs(t, wrapped, &pubErr) {
		assert.Equal(t, "d", pubErr.DocumentID)
	}
}
