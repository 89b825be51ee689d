package credit

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository persists the append-only credit ledger
type Repository interface {
	// LatestBalance returns the resulting balance of the user's newest entry,
	// or zero when the user has no entries.
	LatestBalance(ctx context.Context, userID int64) (decimal.Decimal, error)

	// LatestBalanceForUpdate is LatestBalance with a row lock on the newest
	// entry; it must run inside a transaction.
	LatestBalanceForUpdate(ctx context.Context, userID int64) (decimal.Decimal, error)

	Append(ctx context.Context, entry *Entry) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Entry, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrDuplicateRefund indicates a second refund for the same batch
type ErrDuplicateRefund struct {
	BatchID string
}

func (e ErrDuplicateRefund) Error() string {
	return "batch already refunded: " + e.BatchID
}

// Is matches any ErrDuplicateRefund when the target has no batch id
func (e ErrDuplicateRefund) Is(target error) bool {
	t, ok := target.(ErrDuplicateRefund)
	if !ok {
		return false
	}
	if t.BatchID == "" {
		return true
	}
	return e.BatchID == t.BatchID
}
