package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"kairos/internal/domain/entity"
	"kairos/internal/observability/logging"
	"kairos/internal/observability/metrics"
	"kairos/internal/resilience/retry"
)

// DefaultKeepLastN is how many of the newest documents recovery keeps.
const DefaultKeepLastN = 5

// Drive allows roughly 3 sustained writes per second per user.
const (
	deleteRate  = rate.Limit(2)
	deleteBurst = 2
)

// Recovery results used for metrics.
const (
	recoveryDeleted = "deleted"
	recoveryNoop    = "nothing_to_delete"
	recoveryFailed  = "failed"
)

// DocumentCleaner lists and deletes owned documents.
type DocumentCleaner interface {
	ListOwnedDocuments(ctx context.Context) ([]entity.OwnedDocument, error)
	DeleteDocument(ctx context.Context, fileID string) error
}

// QuotaRecoverer frees storage by deleting the oldest owned documents.
// Recoveries never overlap: concurrent callers on the same store share one
// run, and every other caller waits for the running one to finish before
// listing.
type QuotaRecoverer struct {
	mu      sync.Mutex
	group   singleflight.Group
	limiter *rate.Limiter
	retry   retry.Config
}

// NewQuotaRecoverer creates a QuotaRecoverer.
func NewQuotaRecoverer() *QuotaRecoverer {
	return &QuotaRecoverer{
		limiter: rate.NewLimiter(deleteRate, deleteBurst),
		retry:   retry.GoogleAPIConfig(),
	}
}

// Recover deletes every owned document except the newest keep and returns
// how many were deleted. A document that is already gone counts as deleted.
func (q *QuotaRecoverer) Recover(ctx context.Context, store DocumentCleaner, keep int) (int, error) {
	if keep <= 0 {
		keep = DefaultKeepLastN
	}

	v, err, shared := q.group.Do(recoveryKey(store), func() (interface{}, error) {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.recover(ctx, store, keep)
	})
	deleted, _ := v.(int)
	if shared {
		logging.FromContext(ctx).DebugContext(ctx, "Joined running quota recovery",
			slog.Int("deleted", deleted))
	}
	return deleted, err
}

// recoveryKey identifies the store, and so the account, a recovery runs for.
func recoveryKey(store DocumentCleaner) string {
	return fmt.Sprintf("quota-recovery:%T@%p", store, store)
}

func (q *QuotaRecoverer) recover(ctx context.Context, store DocumentCleaner, keep int) (int, error) {
	logger := logging.FromContext(ctx).With(slog.Int("keep", keep))

	docs, err := store.ListOwnedDocuments(ctx)
	if err != nil {
		metrics.RecordQuotaRecovery(recoveryFailed)
		return 0, fmt.Errorf("list owned documents: %w", err)
	}

	victims := OldestBeyond(docs, keep)
	if len(victims) == 0 {
		metrics.RecordQuotaRecovery(recoveryNoop)
		logger.WarnContext(ctx, "Quota recovery found nothing to delete",
			slog.Int("owned", len(docs)))
		return 0, nil
	}

	logger.WarnContext(ctx, "Storage quota exceeded, deleting oldest documents",
		slog.Int("owned", len(docs)),
		slog.Int("deleting", len(victims)))

	deleted := 0
	for _, doc := range victims {
		if err := q.limiter.Wait(ctx); err != nil {
			metrics.RecordDocumentsDeleted(deleted)
			metrics.RecordQuotaRecovery(recoveryFailed)
			return deleted, fmt.Errorf("quota recovery interrupted: %w", err)
		}

		err := retry.WithBackoff(ctx, q.retry, func() error {
			return store.DeleteDocument(ctx, doc.ID)
		})
		if err != nil && !errors.Is(err, entity.ErrDocumentNotFound) {
			metrics.RecordDocumentsDeleted(deleted)
			metrics.RecordQuotaRecovery(recoveryFailed)
			return deleted, fmt.Errorf("delete document %s: %w", doc.ID, err)
		}

		deleted++
		logger.InfoContext(ctx, "Deleted document",
			slog.String("document_id", doc.ID),
			slog.String("name", doc.Name),
			slog.Time("created_time", doc.CreatedTime),
			slog.Bool("already_deleted", err != nil))
	}

	metrics.RecordDocumentsDeleted(deleted)
	metrics.RecordQuotaRecovery(recoveryDeleted)
	return deleted, nil
}

// OldestBeyond returns the documents to delete so only the newest keep
// remain, oldest first. docs is not modified.
func OldestBeyond(docs []entity.OwnedDocument, keep int) []entity.OwnedDocument {
	if len(docs) <= keep {
		return nil
	}
	sorted := make([]entity.OwnedDocument, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedTime.Before(sorted[j].CreatedTime)
	})
	return sorted[:len(sorted)-keep]
}
