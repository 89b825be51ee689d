package components

import (
	"log/slog"

	"github.com/sendbulk-reconciler/internal/config"
	"github.com/sendbulk-reconciler/internal/domain/audit"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/platform/messaging/producers"
	"github.com/sendbulk-reconciler/internal/reconciler/service"
)

// CreateReconciliationService wires a ReconciliationService. auditRepo and
// outcomeProducer may be nil to run without the poll archive or outcome
// events.
func CreateReconciliationService(
	txRunner service.TxRunner,
	statusPoller service.StatusPoller,
	batchRepo batch.Repository,
	ledger *credit.Ledger,
	auditRepo audit.Repository,
	outcomeProducer producers.MessagePublisher,
	notifier service.Notifier,
	cfg *config.Config,
	logger *slog.Logger,
) service.ReconciliationService {
	applier := NewTransitionApplier(batchRepo, ledger, logger)
	archiver := NewPollArchiver(auditRepo, logger)
	publisher := NewOutcomePublisher(outcomeProducer, logger)

	logger.Info("Created reconciliation service",
		"tx_timeout", cfg.Reconciler.TxTimeout.String(),
		"archive_enabled", auditRepo != nil,
		"outcome_events_enabled", outcomeProducer != nil)

	return service.NewReconciliationService(
		txRunner,
		statusPoller,
		applier,
		archiver,
		publisher,
		notifier,
		cfg.Reconciler.TxTimeout,
		logger,
	)
}
