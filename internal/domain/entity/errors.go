package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrEmptyTopic indicates that the cycle input was empty or whitespace
	ErrEmptyTopic = errors.New("topic is empty")

	// ErrAuth indicates that no usable credential could be resolved
	ErrAuth = errors.New("authentication failed")

	// ErrGeneration indicates that a model call failed or returned unusable output
	ErrGeneration = errors.New("generation failed")

	// ErrAnalysis indicates that the external analysis call failed
	ErrAnalysis = errors.New("analysis failed")

	// ErrPublish indicates that the document provider rejected a publish
	ErrPublish = errors.New("publish failed")

	// ErrQuotaExceeded indicates that the document provider is out of storage quota
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrDocumentNotFound indicates that a remote document does not exist
	ErrDocumentNotFound = errors.New("document not found")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// AuthError is returned when neither the delegated token nor the service
// identity produced a credential.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches ErrAuth.
func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// GenerationError is returned when a completion call errors or yields empty
// or refused output.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is matches ErrGeneration.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// AnalysisError is returned when the analysis service answers with a non-2xx
// status, times out or sends a body that is not valid JSON. StatusCode is zero
// when no response was received.
type AnalysisError struct {
	StatusCode int
	Err        error
}

func (e *AnalysisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("analysis: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Is matches ErrAnalysis.
func (e *AnalysisError) Is(target error) bool { return target == ErrAnalysis }

// PublishError is returned when a document could not be published and quota
// recovery did not help. DocumentID is set when the document was created but
// a later step failed.
type PublishError struct {
	Op            string
	Title         string
	DocumentID    string
	QuotaExceeded bool
	Err           error
}

func (e *PublishError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("publish %q: %s (document %s): %v", e.Title, e.Op, e.DocumentID, e.Err)
	}
	return fmt.Sprintf("publish %q: %s: %v", e.Title, e.Op, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Is matches ErrPublish.
func (e *PublishError) Is(target error) bool { return target == ErrPublish }
