package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/sendbulk-reconciler/internal/platform/messaging/producers"
	"github.com/sendbulk-reconciler/internal/reconciler/service"
)

// ReconcileRequestHandler reconciles a single batch on demand, outside the
// poller's cadence. It shares the terminal-update guard with the poller, so
// racing it is harmless.
type ReconcileRequestHandler struct {
	batchRepo  batch.Repository
	reconciler service.ReconciliationService
	producer   producers.DeadLetterPublisher
	logger     *slog.Logger
}

func NewReconcileRequestHandler(
	logger *slog.Logger,
	batchRepo batch.Repository,
	reconciler service.ReconciliationService,
	producer producers.DeadLetterPublisher,
) *ReconcileRequestHandler {
	return &ReconcileRequestHandler{
		batchRepo:  batchRepo,
		reconciler: reconciler,
		producer:   producer,
		logger:     logger.With("component", "reconcile_request_handler"),
	}
}

// HandleMessage processes one reconcile request. Returning nil commits the
// offset.
func (h *ReconcileRequestHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.ReconcileRequest
	if err := json.Unmarshal(value, &request); err != nil {
		return h.reject(ctx, key, value, fmt.Errorf("failed to unmarshal reconcile request: %w", err))
	}
	if err := request.Validate(); err != nil {
		return h.reject(ctx, key, value, fmt.Errorf("invalid reconcile request: %w", err))
	}

	logger := h.logger.With("batch_id", request.BatchID)
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received reconcile request", "requested_by", request.RequestedBy)

	b, err := h.batchRepo.GetByID(ctx, request.BatchID)
	if err != nil {
		if errors.Is(err, batch.ErrBatchNotFound{}) {
			logger.Warn("Reconcile request for unknown batch, skipping")
			return nil
		}
		return fmt.Errorf("failed to load batch %s: %w", request.BatchID, err)
	}

	if b.IsTerminal() {
		logger.Info("Batch already terminal, skipping", "state", b.State)
		return nil
	}

	outcome, err := h.reconciler.ReconcileBatch(ctx, b)
	if err != nil {
		logger.Error("Failed to reconcile batch", "error", err)
		return fmt.Errorf("reconciling batch %s failed: %w", request.BatchID, err)
	}

	logger.Info("Reconcile request handled", "outcome", outcome)
	return nil
}

// reject parks an unprocessable message. It is committed once it is safely
// in the DLQ, or immediately when no DLQ is configured.
func (h *ReconcileRequestHandler) reject(ctx context.Context, key, value []byte, cause error) error {
	h.logger.Error("Unprocessable reconcile request", "message_key", string(key), "error", cause)

	if h.producer == nil {
		return nil
	}

	if err := h.producer.PublishToDLQ(ctx, string(key), value, cause.Error()); err != nil {
		if errors.Is(err, producers.ErrDLQDisabled) {
			return nil
		}
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", err,
			"original_error", cause,
			"message_key", string(key))
		return cause
	}

	h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key))
	return nil
}
