// Package poller drives the periodic reconciliation of pending batches.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sendbulk-reconciler/internal/config"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/platform/metrics"
	"github.com/sendbulk-reconciler/internal/reconciler/service"
)

// Poller reconciles pending batches on a fixed cadence. Ticks run on the
// caller's goroutine, so two ticks never overlap.
type Poller struct {
	batchRepo       batch.Repository
	reconciler      service.ReconciliationService
	logger          *slog.Logger
	initialDelay    time.Duration
	pollingInterval time.Duration
	errorBackoff    time.Duration
	pollDelay       time.Duration
	maxBatchAge     time.Duration
	batchLimit      int
}

func NewPoller(
	cfg *config.ReconcilerConfig,
	batchRepo batch.Repository,
	reconciler service.ReconciliationService,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		batchRepo:       batchRepo,
		reconciler:      reconciler,
		logger:          logger.With("component", "poller"),
		initialDelay:    cfg.InitialDelay,
		pollingInterval: cfg.PollingInterval,
		errorBackoff:    cfg.ErrorBackoff,
		pollDelay:       cfg.PollDelay,
		maxBatchAge:     cfg.MaxBatchAge,
		batchLimit:      cfg.BatchLimit,
	}
}

// Start waits the initial delay, then runs one tick per polling interval
// until ctx is cancelled. A tick that cannot list batches pushes the next
// one out by the error backoff instead.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting reconciliation poller",
		"initial_delay", p.initialDelay.String(),
		"polling_interval", p.pollingInterval.String(),
		"error_backoff", p.errorBackoff.String(),
		"max_batch_age", p.maxBatchAge.String(),
		"batch_limit", p.batchLimit,
	)

	wait := p.initialDelay
	for {
		if !sleep(ctx, wait) {
			p.logger.Info("Reconciliation poller stopping due to context cancellation")
			return
		}

		wait = p.pollingInterval
		if err := p.Tick(ctx); err != nil {
			p.logger.Error("Reconciliation tick failed, backing off", "backoff", p.errorBackoff.String(), "error", err)
			wait = p.errorBackoff
		}
	}
}

// Tick reconciles every pending batch once, oldest first. Only a failure to
// list pending batches is returned; per-batch failures are logged and the
// batch is retried on the next tick.
func (p *Poller) Tick(ctx context.Context) error {
	metrics.TicksTotal.Inc()
	p.reportStale(ctx)

	batches, err := p.batchRepo.ListPending(ctx, p.maxBatchAge, p.batchLimit)
	if err != nil {
		metrics.TickErrorsTotal.Inc()
		return fmt.Errorf("failed to list pending batches: %w", err)
	}

	if len(batches) == 0 {
		p.logger.Debug("No pending batches")
		return nil
	}

	p.logger.Info("Reconciling pending batches", "count", len(batches))

	for i, b := range batches {
		if i > 0 && !sleep(ctx, p.pollDelay) {
			p.logger.Info("Tick interrupted", "reconciled", i, "remaining", len(batches)-i)
			return nil
		}

		outcome, err := p.reconciler.ReconcileBatch(ctx, b)
		if err != nil {
			p.logger.Error("Failed to reconcile batch", "batch_id", b.BatchID, "error", err)
			continue
		}
		p.logger.Debug("Batch reconciled", "batch_id", b.BatchID, "outcome", outcome)
	}

	return nil
}

// reportStale warns about batches that fell out of the reconciliation
// window. They stay PENDING; resolving them is an operator decision. The
// gauge carries the full count, the warnings at most batchLimit batches.
func (p *Poller) reportStale(ctx context.Context) {
	count, err := p.batchRepo.CountStale(ctx, p.maxBatchAge)
	if err != nil {
		p.logger.Warn("Failed to count stale batches", "error", err)
		return
	}
	metrics.StaleBatches.Set(float64(count))
	if count == 0 {
		return
	}

	stale, err := p.batchRepo.ListStale(ctx, p.maxBatchAge, p.batchLimit)
	if err != nil {
		p.logger.Warn("Failed to list stale batches", "error", err)
		return
	}
	if unlisted := count - int64(len(stale)); unlisted > 0 {
		p.logger.Warn("More stale batches than listed", "stale", count, "unlisted", unlisted)
	}

	now := time.Now()
	for _, b := range stale {
		p.logger.Warn("Batch pending beyond reconciliation window",
			"batch_id", b.BatchID,
			"owner_id", b.OwnerID,
			"age", b.Age(now).Round(time.Minute).String())
	}
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
