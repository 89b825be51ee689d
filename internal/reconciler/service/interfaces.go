package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
)

// ReconciliationService settles one pending batch against the gateway.
type ReconciliationService interface {
	ReconcileBatch(ctx context.Context, b *batch.Batch) (shared.ReconcileOutcome, error)
}

// StatusPoller asks the gateway for a batch's status. A nil status means the
// poll failed and the batch stays pending.
type StatusPoller interface {
	PollStatus(ctx context.Context, batchID string) *batch.GatewayStatus
}

// TransitionApplier writes a terminal transition and, for refunding states,
// the matching ledger entry inside tx. The entry is nil when nothing was
// credited back.
type TransitionApplier interface {
	ApplyTransition(ctx context.Context, tx pgx.Tx, b *batch.Batch, t batch.Transition) (*credit.Entry, error)
}

// PollArchiver keeps a copy of every poll result. Failures are swallowed.
type PollArchiver interface {
	Archive(ctx context.Context, batchID string, status *batch.GatewayStatus, outcome shared.ReconcileOutcome)
}

// OutcomePublisher announces committed transitions.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, b *batch.Batch, t batch.Transition, refund *credit.Entry)
}

// Notifier tells the batch owner how the send ended.
type Notifier interface {
	NotifyOutcome(ctx context.Context, b *batch.Batch, t batch.Transition)
}

// TxRunner runs fn in a transaction that is retried on serialization
// failures. *persistence.PostgresDB satisfies it.
type TxRunner interface {
	ExecuteTxWithRetry(ctx context.Context, fn func(tx pgx.Tx) error) error
}
