package components

import (
	"context"
	"log/slog"

	"github.com/sendbulk-reconciler/internal/domain/audit"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/sendbulk-reconciler/internal/reconciler/service"
)

// PollArchiverImpl writes poll records to the audit store. A nil repository
// disables archiving.
type PollArchiverImpl struct {
	repo   audit.Repository
	logger *slog.Logger
}

func NewPollArchiver(repo audit.Repository, logger *slog.Logger) service.PollArchiver {
	return &PollArchiverImpl{
		repo:   repo,
		logger: logger.With("component", "poll_archiver"),
	}
}

func (a *PollArchiverImpl) Archive(ctx context.Context, batchID string, status *batch.GatewayStatus, outcome shared.ReconcileOutcome) {
	if a.repo == nil || status == nil {
		return
	}

	record := audit.NewPollRecord(batchID, status, outcome)
	if err := a.repo.Create(ctx, record); err != nil {
		a.logger.Warn("Poll record not archived", "batch_id", batchID, "outcome", outcome, "error", err)
	}
}
