package audit

import "context"

// Repository stores gateway poll records for audit
type Repository interface {
	Create(ctx context.Context, record *PollRecord) error
	ListByBatchID(ctx context.Context, batchID string, limit, offset int) ([]*PollRecord, error)
	CountByBatchID(ctx context.Context, batchID string) (int64, error)
}
