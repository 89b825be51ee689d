package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/sendbulk-reconciler/internal/platform/messaging/producers"
	"github.com/sendbulk-reconciler/internal/reconciler/service"
	"github.com/shopspring/decimal"
)

// OutcomePublisherImpl implements service.OutcomePublisher on top of a Kafka
// producer. A nil producer disables publishing.
type OutcomePublisherImpl struct {
	producer producers.MessagePublisher
	logger   *slog.Logger
}

func NewOutcomePublisher(producer producers.MessagePublisher, logger *slog.Logger) service.OutcomePublisher {
	return &OutcomePublisherImpl{
		producer: producer,
		logger:   logger.With("component", "outcome_publisher"),
	}
}

// PublishOutcome emits a BatchOutcomeEvent keyed by batch id. The transition
// is already committed, so a failed publish is only logged.
func (p *OutcomePublisherImpl) PublishOutcome(ctx context.Context, b *batch.Batch, t batch.Transition, refund *credit.Entry) {
	if p.producer == nil {
		return
	}

	event := NewOutcomeEvent(b, t, refund)
	if err := p.producer.Publish(ctx, b.BatchID, event); err != nil {
		p.logger.Error("Failed to publish batch outcome", "batch_id", b.BatchID, "state", t.State, "error", err)
		return
	}
	p.logger.Debug("Published batch outcome", "batch_id", b.BatchID, "state", t.State)
}

func NewOutcomeEvent(b *batch.Batch, t batch.Transition, refund *credit.Entry) shared.BatchOutcomeEvent {
	refunded := decimal.Zero
	if refund != nil {
		refunded = refund.Amount
	}
	return shared.BatchOutcomeEvent{
		BatchID:        b.BatchID,
		OwnerID:        b.OwnerID,
		State:          t.State,
		GatewayStatus:  t.GatewayStatusCode,
		RefundedAmount: refunded,
		SentCount:      t.SentCount,
		FailedCount:    t.FailedCount,
		ProcessedAt:    t.ProcessedAt,
		OccurredAt:     time.Now().UTC(),
	}
}
