package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/sendbulk-reconciler/internal/platform/metrics"
)

type ReconciliationServiceImpl struct {
	txRunner  TxRunner
	poller    StatusPoller
	applier   TransitionApplier
	archiver  PollArchiver
	publisher OutcomePublisher
	notifier  Notifier
	txTimeout time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewReconciliationService(
	txRunner TxRunner,
	poller StatusPoller,
	applier TransitionApplier,
	archiver PollArchiver,
	publisher OutcomePublisher,
	notifier Notifier,
	txTimeout time.Duration,
	logger *slog.Logger,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		txRunner:  txRunner,
		poller:    poller,
		applier:   applier,
		archiver:  archiver,
		publisher: publisher,
		notifier:  notifier,
		txTimeout: txTimeout,
		now:       time.Now,
		logger:    logger.With("component", "reconciliation_service"),
	}
}

// ReconcileBatch polls the gateway once for b and, when the gateway reports a
// terminal code, moves b out of PENDING together with its refund in a single
// transaction. Only persistence failures are returned; a failed or
// inconclusive poll leaves the batch for the next tick.
func (s *ReconciliationServiceImpl) ReconcileBatch(ctx context.Context, b *batch.Batch) (shared.ReconcileOutcome, error) {
	logger := s.logger.With("batch_id", b.BatchID)

	start := time.Now()
	status := s.poller.PollStatus(ctx, b.BatchID)
	metrics.GatewayPollDuration.Observe(time.Since(start).Seconds())

	if status == nil {
		metrics.GatewayPollsTotal.WithLabelValues("failed").Inc()
		logger.Warn("No usable gateway status, batch stays pending")
		return s.record(shared.OutcomePollFailed), nil
	}
	metrics.GatewayPollsTotal.WithLabelValues("ok").Inc()

	transition, res := batch.NewTransition(status, s.now())
	switch res {
	case batch.ResolutionInProgress:
		logger.Debug("Batch still in progress at gateway", "send_status", status.RawStatusCode)
		s.archiver.Archive(ctx, b.BatchID, status, shared.OutcomeStillPending)
		return s.record(shared.OutcomeStillPending), nil
	case batch.ResolutionUnrecognized:
		logger.Warn("Unrecognized gateway status, batch stays pending", "send_status", status.RawStatusCode)
		s.archiver.Archive(ctx, b.BatchID, status, shared.OutcomeUnrecognized)
		return s.record(shared.OutcomeUnrecognized), nil
	}

	refund, err := s.commitTransition(ctx, b, transition)
	if errors.Is(err, batch.ErrBatchAlreadyTerminal{}) {
		logger.Info("Batch already settled by another attempt")
		s.archiver.Archive(context.WithoutCancel(ctx), b.BatchID, status, shared.OutcomeAlreadyTerminal)
		return s.record(shared.OutcomeAlreadyTerminal), nil
	}
	if err != nil {
		logger.Error("Failed to apply terminal transition", "state", transition.State, "error", err)
		return "", fmt.Errorf("failed to apply transition for batch %s: %w", b.BatchID, err)
	}

	outcome := shared.OutcomeConfirmed
	if transition.RequiresRefund() {
		outcome = shared.OutcomeRefunded
	}

	logger.Info("Batch reached terminal state",
		"state", transition.State,
		"send_status", transition.GatewayStatusCode,
		"sent_count", transition.SentCount,
		"failed_count", transition.FailedCount,
		"refunded", refund != nil)

	// The transition is committed; nothing below may undo or fail it.
	afterCtx := context.WithoutCancel(ctx)
	s.archiver.Archive(afterCtx, b.BatchID, status, outcome)
	metrics.TransitionsTotal.WithLabelValues(string(transition.State)).Inc()
	if refund != nil {
		metrics.RefundedCreditTotal.Add(refund.Amount.InexactFloat64())
	}
	s.publisher.PublishOutcome(afterCtx, b, transition, refund)
	s.notifier.NotifyOutcome(afterCtx, b, transition)

	return s.record(outcome), nil
}

// commitTransition is detached from ctx so that shutdown cannot cut the
// transaction between the state change and the refund.
func (s *ReconciliationServiceImpl) commitTransition(ctx context.Context, b *batch.Batch, t batch.Transition) (*credit.Entry, error) {
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
	defer cancel()

	var refund *credit.Entry
	err := s.txRunner.ExecuteTxWithRetry(txCtx, func(tx pgx.Tx) error {
		entry, err := s.applier.ApplyTransition(txCtx, tx, b, t)
		if err != nil {
			return err
		}
		refund = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

func (s *ReconciliationServiceImpl) record(outcome shared.ReconcileOutcome) shared.ReconcileOutcome {
	metrics.ReconcileOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	return outcome
}
