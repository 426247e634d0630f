// Package publish creates documents at the document provider: create, quota
// recovery with one retry, insert content, move into the target folder, and
// an optional best-effort share step.
package publish

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kairos/internal/domain/entity"
	"kairos/internal/observability/logging"
	"kairos/internal/observability/metrics"
	"kairos/internal/resilience/retry"
)

// contentIndex is the document body start.
const contentIndex = 1

// DocumentStore is the document provider surface used for publishing.
type DocumentStore interface {
	CreateDocument(ctx context.Context, title string) (*entity.DocumentRef, error)
	InsertText(ctx context.Context, documentID string, index int64, text string) error
	MoveToFolder(ctx context.Context, fileID, folderID string) error
	GrantAccess(ctx context.Context, fileID, email string, transfer bool) error
	CopyDocument(ctx context.Context, fileID, title, folderID string) (*entity.DocumentRef, error)
	ListOwnedDocuments(ctx context.Context) ([]entity.OwnedDocument, error)
	DeleteDocument(ctx context.Context, fileID string) error
}

// Config controls the optional publish steps.
type Config struct {
	// FolderID is the target folder; empty leaves documents in the root.
	FolderID string

	// ShareEmail enables the post-publish step for this account.
	ShareEmail string
	ShareMode  entity.ShareMode

	// QuotaRecoveryEnabled gates the destructive quota recovery.
	QuotaRecoveryEnabled bool
	KeepLastN            int

	// Retry applies to the idempotent Drive calls (move, share, copy).
	Retry retry.Config
}

// Service publishes documents through one DocumentStore, which is bound to
// one credential.
type Service struct {
	store     DocumentStore
	config    Config
	recoverer *QuotaRecoverer
}

// NewService creates a Service. recoverer is shared by every Service in the
// process so recoveries are serialized; it may be nil when recovery is
// disabled.
func NewService(store DocumentStore, cfg Config, recoverer *QuotaRecoverer) *Service {
	if cfg.ShareMode == "" {
		cfg.ShareMode = entity.ShareModeShare
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.GoogleAPIConfig()
	}
	return &Service{store: store, config: cfg, recoverer: recoverer}
}

// Publish creates one document titled title holding content and moves it
// into folderID when set. Failures are *entity.PublishError.
func (s *Service) Publish(ctx context.Context, title, content, folderID string) (*entity.DocumentRef, error) {
	logger := logging.FromContext(ctx).With(slog.String("title", title))
	start := time.Now()

	ref, err := s.publish(ctx, title, content, folderID)
	metrics.RecordPublish(err)
	if err != nil {
		logger.ErrorContext(ctx, "Publish failed",
			slog.Duration("duration", time.Since(start)),
			slog.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	logger.InfoContext(ctx, "Document published",
		slog.String("document_id", ref.ID),
		slog.String("url", ref.URL),
		slog.Duration("duration", time.Since(start)))
	return ref, nil
}

func (s *Service) publish(ctx context.Context, title, content, folderID string) (*entity.DocumentRef, error) {
	ref, err := s.create(ctx, title)
	if err != nil {
		return nil, err
	}

	if content != "" {
		if err := s.store.InsertText(ctx, ref.ID, contentIndex, content); err != nil {
			return nil, &entity.PublishError{Op: "insert content", Title: title, DocumentID: ref.ID, Err: err}
		}
	}

	if folderID != "" {
		err := retry.WithBackoff(ctx, s.config.Retry, func() error {
			return s.store.MoveToFolder(ctx, ref.ID, folderID)
		})
		if err != nil {
			return nil, &entity.PublishError{Op: "move to folder", Title: title, DocumentID: ref.ID, Err: err}
		}
	}

	return ref, nil
}

// create runs the create call, with quota recovery and exactly one retry.
func (s *Service) create(ctx context.Context, title string) (*entity.DocumentRef, error) {
	ref, err := s.store.CreateDocument(ctx, title)
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, entity.ErrQuotaExceeded) {
		return nil, &entity.PublishError{Op: "create", Title: title, Err: err}
	}

	if !s.config.QuotaRecoveryEnabled || s.recoverer == nil {
		logging.FromContext(ctx).WarnContext(ctx, "Storage quota exceeded and quota recovery is disabled",
			slog.String("title", title))
		return nil, &entity.PublishError{Op: "create", Title: title, QuotaExceeded: true, Err: err}
	}

	if _, recErr := s.recoverer.Recover(ctx, s.store, s.config.KeepLastN); recErr != nil {
		return nil, &entity.PublishError{
			Op:            "quota recovery",
			Title:         title,
			QuotaExceeded: true,
			Err:           errors.Join(err, recErr),
		}
	}

	ref, err = s.store.CreateDocument(ctx, title)
	if err != nil {
		return nil, &entity.PublishError{
			Op:            "create after quota recovery",
			Title:         title,
			QuotaExceeded: errors.Is(err, entity.ErrQuotaExceeded),
			Err:           err,
		}
	}
	return ref, nil
}

// PostPublish runs the configured share step for doc. It never fails the
// publish: the outcome is only reported in the result.
func (s *Service) PostPublish(ctx context.Context, doc *entity.DocumentRef) entity.ShareResult {
	result := entity.ShareResult{Mode: s.config.ShareMode, Email: s.config.ShareEmail}
	if s.config.ShareEmail == "" || doc == nil {
		result.Skipped = true
		metrics.RecordPostPublish(string(result.Mode), true, nil)
		return result
	}

	logger := logging.FromContext(ctx).With(
		slog.String("document_id", doc.ID),
		slog.String("mode", string(result.Mode)))

	switch result.Mode {
	case entity.ShareModeShare:
		result.Err = s.grant(ctx, doc.ID, false)
	case entity.ShareModeTransfer:
		result.Err = s.grant(ctx, doc.ID, true)
	case entity.ShareModeCopy:
		result.Copy, result.Err = s.copyAndShare(ctx, doc)
	default:
		result.Err = errors.New("unknown share mode " + string(result.Mode))
	}

	metrics.RecordPostPublish(string(result.Mode), false, result.Err)
	if !result.OK() {
		logger.WarnContext(ctx, "Post-publish step failed, document stays published",
			slog.String("error", logging.SanitizeError(result.Err)))
		return result
	}
	logger.InfoContext(ctx, "Post-publish step completed")
	return result
}

func (s *Service) grant(ctx context.Context, fileID string, transfer bool) error {
	return retry.WithBackoff(ctx, s.config.Retry, func() error {
		return s.store.GrantAccess(ctx, fileID, s.config.ShareEmail, transfer)
	})
}

// copyAndShare copies doc into the target folder and shares the copy. The
// copy call is not retried so a timeout cannot leave two copies.
func (s *Service) copyAndShare(ctx context.Context, doc *entity.DocumentRef) (*entity.DocumentRef, error) {
	copied, err := s.store.CopyDocument(ctx, doc.ID, doc.Title, s.config.FolderID)
	if err != nil {
		return nil, err
	}
	if err := s.grant(ctx, copied.ID, false); err != nil {
		return copied, err
	}
	return copied, nil
}
