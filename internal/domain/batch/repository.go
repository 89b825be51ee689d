package batch

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/domain/shared"
)

// Repository persists batch trackers
type Repository interface {
	Create(ctx context.Context, b *Batch) error
	GetByID(ctx context.Context, batchID string) (*Batch, error)

	// ListPending returns pending batches submitted within maxAge, oldest first.
	ListPending(ctx context.Context, maxAge time.Duration, limit int) ([]*Batch, error)

	// ListStale returns pending batches submitted before maxAge, oldest first.
	ListStale(ctx context.Context, maxAge time.Duration, limit int) ([]*Batch, error)
	CountStale(ctx context.Context, maxAge time.Duration) (int64, error)

	// List filters by state when state is non-empty, newest first.
	List(ctx context.Context, state shared.BatchState, limit, offset int) ([]*Batch, error)
	Count(ctx context.Context, state shared.BatchState) (int64, error)

	// MarkTerminal moves a pending batch to t.State. It returns
	// ErrBatchAlreadyTerminal if the batch has left PENDING.
	MarkTerminal(ctx context.Context, batchID string, t Transition) error

	WithTx(tx pgx.Tx) Repository
}

// ErrBatchNotFound indicates a missing batch
type ErrBatchNotFound struct {
	BatchID string
}

func (e ErrBatchNotFound) Error() string {
	return "batch not found: " + e.BatchID
}

// Is matches any ErrBatchNotFound when the target has no batch id
func (e ErrBatchNotFound) Is(target error) bool {
	t, ok := target.(ErrBatchNotFound)
	if !ok {
		return false
	}
	if t.BatchID == "" {
		return true
	}
	return e.BatchID == t.BatchID
}

// ErrBatchAlreadyTerminal indicates the conditional terminal update matched
// no pending row
type ErrBatchAlreadyTerminal struct {
	BatchID string
}

func (e ErrBatchAlreadyTerminal) Error() string {
	return "batch already in a terminal state: " + e.BatchID
}

// Is matches any ErrBatchAlreadyTerminal when the target has no batch id
func (e ErrBatchAlreadyTerminal) Is(target error) bool {
	t, ok := target.(ErrBatchAlreadyTerminal)
	if !ok {
		return false
	}
	if t.BatchID == "" {
		return true
	}
	return e.BatchID == t.BatchID
}

// ErrDuplicateBatch indicates the gateway id is already tracked
type ErrDuplicateBatch struct {
	BatchID string
}

func (e ErrDuplicateBatch) Error() string {
	return "batch already registered: " + e.BatchID
}

// Is matches any ErrDuplicateBatch when the target has no batch id
func (e ErrDuplicateBatch) Is(target error) bool {
	t, ok := target.(ErrDuplicateBatch)
	if !ok {
		return false
	}
	if t.BatchID == "" {
		return true
	}
	return e.BatchID == t.BatchID
}
