package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/admin_api/middleware"
	"github.com/sendbulk-reconciler/internal/domain/audit"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/sendbulk-reconciler/internal/platform/messaging/producers"
)

// BatchServiceImpl implements the BatchService interface
type BatchServiceImpl struct {
	txRunner  TxRunner
	batchRepo batch.Repository
	ledger    *credit.Ledger
	pollRepo  audit.Repository
	producer  producers.MessagePublisher
	logger    *slog.Logger
}

// NewBatchService creates a new batch service. producer publishes to the
// reconcile request topic.
func NewBatchService(
	txRunner TxRunner,
	batchRepo batch.Repository,
	ledger *credit.Ledger,
	pollRepo audit.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) BatchService {
	return &BatchServiceImpl{
		txRunner:  txRunner,
		batchRepo: batchRepo,
		ledger:    ledger,
		pollRepo:  pollRepo,
		producer:  producer,
		logger:    logger.With("component", "batch_service"),
	}
}

// RegisterBatch debits the reservation and inserts the pending tracker in one
// transaction, so a batch is never tracked without having paid for it.
func (s *BatchServiceImpl) RegisterBatch(ctx context.Context, reg Registration) (*batch.Batch, error) {
	recipients, err := reg.validate()
	if err != nil {
		return nil, err
	}

	b, err := batch.NewBatch(
		strings.TrimSpace(reg.BatchID),
		reg.OwnerID,
		reg.ReservedCredit,
		len(recipients),
		strings.TrimSpace(reg.Title),
		strings.TrimSpace(reg.Message),
		reg.NotificationTarget,
	)
	if err != nil {
		return nil, &ValidationError{Field: "batch", Message: err.Error()}
	}

	// Fast path; the funds check inside the transaction is the one that counts.
	if !s.ledger.HasSufficientCredit(ctx, b.OwnerID, b.ReservedCredit) {
		return nil, credit.ErrInsufficientCredit
	}

	err = s.txRunner.ExecuteTxWithRetry(ctx, func(tx pgx.Tx) error {
		if _, err := s.ledger.Apply(ctx, tx, credit.Delta{
			UserID:       b.OwnerID,
			Amount:       b.ReservedCredit.Neg(),
			Description:  credit.ReservationDescription(b.RecipientCount),
			MessageCount: b.RecipientCount,
			Kind:         shared.EntryKindReservation,
			BatchID:      b.BatchID,
			RequireFunds: true,
		}); err != nil {
			return err
		}
		return s.batchRepo.WithTx(tx).Create(ctx, b)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register batch %s: %w", b.BatchID, err)
	}

	s.logger.Info("Batch registered",
		"batch_id", b.BatchID,
		"owner_id", b.OwnerID,
		"recipients", b.RecipientCount,
		"reserved_credit", b.ReservedCredit.String())

	return b, nil
}

func (s *BatchServiceImpl) GetBatch(ctx context.Context, batchID string) (*batch.Batch, error) {
	return s.batchRepo.GetByID(ctx, batchID)
}

func (s *BatchServiceImpl) ListBatches(ctx context.Context, state shared.BatchState, page, perPage int) ([]*batch.Batch, int64, error) {
	total, err := s.batchRepo.Count(ctx, state)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*batch.Batch{}, 0, nil
	}

	batches, err := s.batchRepo.List(ctx, state, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// ListPolls requires the batch to exist so unknown ids are a 404 rather than
// an empty history.
func (s *BatchServiceImpl) ListPolls(ctx context.Context, batchID string, page, perPage int) ([]*audit.PollRecord, int64, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return nil, 0, err
	}

	total, err := s.pollRepo.CountByBatchID(ctx, batchID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*audit.PollRecord{}, 0, nil
	}

	records, err := s.pollRepo.ListByBatchID(ctx, batchID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// RequestReconcile rejects terminal batches up front. The reconciler checks
// again on receipt; the conditional update makes a late duplicate harmless.
func (s *BatchServiceImpl) RequestReconcile(ctx context.Context, batchID, requestedBy string) (*shared.ReconcileRequest, error) {
	b, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b.IsTerminal() {
		return nil, batch.ErrBatchAlreadyTerminal{BatchID: batchID}
	}

	request := &shared.ReconcileRequest{
		BatchID:       batchID,
		RequestedBy:   requestedBy,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		RequestedAt:   time.Now().UTC(),
	}

	if err := s.producer.Publish(ctx, batchID, request); err != nil {
		return nil, fmt.Errorf("failed to queue reconcile request for batch %s: %w", batchID, err)
	}

	s.logger.Info("Reconcile requested",
		"batch_id", batchID,
		"requested_by", requestedBy,
		"correlation_id", request.CorrelationID)

	return request, nil
}
