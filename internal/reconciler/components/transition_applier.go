package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/sendbulk-reconciler/internal/reconciler/service"
)

// TransitionApplierImpl implements service.TransitionApplier
type TransitionApplierImpl struct {
	batchRepo batch.Repository
	ledger    *credit.Ledger
	logger    *slog.Logger
}

func NewTransitionApplier(batchRepo batch.Repository, ledger *credit.Ledger, logger *slog.Logger) service.TransitionApplier {
	return &TransitionApplierImpl{
		batchRepo: batchRepo,
		ledger:    ledger,
		logger:    logger.With("component", "transition_applier"),
	}
}

// ApplyTransition marks the batch terminal and, for refunding states, credits
// the full reservation back to the owner. The state change comes first: if
// another attempt already settled the batch, batch.ErrBatchAlreadyTerminal is
// returned before the ledger is touched.
func (a *TransitionApplierImpl) ApplyTransition(ctx context.Context, tx pgx.Tx, b *batch.Batch, t batch.Transition) (*credit.Entry, error) {
	if err := a.batchRepo.WithTx(tx).MarkTerminal(ctx, b.BatchID, t); err != nil {
		return nil, err
	}

	if !t.RequiresRefund() {
		return nil, nil
	}

	if b.ReservedCredit.IsZero() {
		a.logger.Warn("Refunding batch with no reserved credit, ledger unchanged", "batch_id", b.BatchID)
		return nil, nil
	}

	entry, err := a.ledger.Apply(ctx, tx, credit.Delta{
		UserID:       b.OwnerID,
		Amount:       b.ReservedCredit,
		Description:  credit.RefundDescription(b.RecipientCount),
		MessageCount: b.RecipientCount,
		Kind:         shared.EntryKindRefund,
		BatchID:      b.BatchID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refund batch %s: %w", b.BatchID, err)
	}

	return entry, nil
}
