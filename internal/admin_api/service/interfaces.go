package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/domain/audit"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// BatchService defines the operator operations on tracked batches
type BatchService interface {
	// RegisterBatch validates a submitted batch, reserves its credit and
	// starts tracking it. Returns a *ValidationError for bad input,
	// credit.ErrInsufficientCredit and batch.ErrDuplicateBatch.
	RegisterBatch(ctx context.Context, reg Registration) (*batch.Batch, error)

	// GetBatch returns batch.ErrBatchNotFound for unknown ids
	GetBatch(ctx context.Context, batchID string) (*batch.Batch, error)

	// ListBatches returns one page of batches, optionally filtered by state,
	// and the total count for that filter
	ListBatches(ctx context.Context, state shared.BatchState, page, perPage int) ([]*batch.Batch, int64, error)

	// ListPolls returns the archived gateway polls of a batch, newest first
	ListPolls(ctx context.Context, batchID string, page, perPage int) ([]*audit.PollRecord, int64, error)

	// RequestReconcile queues an immediate reconciliation. Returns
	// batch.ErrBatchNotFound and batch.ErrBatchAlreadyTerminal.
	RequestReconcile(ctx context.Context, batchID, requestedBy string) (*shared.ReconcileRequest, error)
}

// CreditService defines the operator operations on the credit ledger
type CreditService interface {
	GetBalance(ctx context.Context, userID int64) decimal.Decimal
	ListEntries(ctx context.Context, userID int64, page, perPage int) ([]*credit.Entry, int64, error)

	// Adjust appends a signed ADJUSTMENT. A debit may not overdraw the balance.
	Adjust(ctx context.Context, userID int64, amount decimal.Decimal, description string) (*credit.Entry, error)
}

// TxRunner runs fn in a retried database transaction
type TxRunner interface {
	ExecuteTxWithRetry(ctx context.Context, fn func(tx pgx.Tx) error) error
}
