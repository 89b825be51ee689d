// Package notifier delivers batch outcome notifications off the
// reconciliation path.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sendbulk-reconciler/internal/config"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/platform/messaging/producers"
	"github.com/sendbulk-reconciler/internal/platform/metrics"
	"github.com/sendbulk-reconciler/internal/platform/notify"
)

// Dispatcher sends notifications from a bounded worker pool. Senders are
// tried in order; the first one that succeeds ends the delivery.
type Dispatcher struct {
	senders        []notify.Sender
	dlq            producers.DeadLetterPublisher
	pool           *ants.Pool
	maxAttempts    int
	initialBackoff time.Duration
	location       *time.Location
	now            func() time.Time
	logger         *slog.Logger
}

// undelivered is the dead letter payload of a notification no channel took.
type undelivered struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

// NewDispatcher creates a dispatcher with poolSize workers. dlq may be nil.
func NewDispatcher(
	cfg *config.NotificationConfig,
	poolSize int,
	senders []notify.Sender,
	dlq producers.DeadLetterPublisher,
	location *time.Location,
	logger *slog.Logger,
) (*Dispatcher, error) {
	logger = logger.With("component", "notification_dispatcher")

	pool, err := ants.NewPool(poolSize,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Error("Notification job panicked", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification pool: %w", err)
	}

	if location == nil {
		location = time.UTC
	}

	return &Dispatcher{
		senders:        senders,
		dlq:            dlq,
		pool:           pool,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		location:       location,
		now:            time.Now,
		logger:         logger,
	}, nil
}

// NotifyOutcome tells the batch's notification target how the send ended.
func (d *Dispatcher) NotifyOutcome(ctx context.Context, b *batch.Batch, t batch.Transition) {
	d.Notify(ctx, b.NotificationTarget, OutcomeMessage(b, t, d.now().In(d.location)))
}

// Notify queues message for target and returns immediately. Nothing is
// reported back to the caller: an empty target, a full pool and a failed
// delivery are all logged and dropped.
func (d *Dispatcher) Notify(ctx context.Context, target, message string) {
	if target == "" {
		d.logger.Warn("Notification skipped, no target configured")
		metrics.NotificationsTotal.WithLabelValues("none", "skipped").Inc()
		return
	}

	err := d.pool.Submit(func() {
		d.deliver(ctx, target, message)
	})
	if err != nil {
		d.logger.Error("Notification dropped", "target", target, "error", err)
		metrics.NotificationsTotal.WithLabelValues("none", "dropped").Inc()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, target, message string) {
	var errs []error
	for _, sender := range d.senders {
		err := d.sendWithRetry(ctx, sender, target, message)
		if err == nil {
			metrics.NotificationsTotal.WithLabelValues(sender.Name(), "sent").Inc()
			d.logger.Info("Notification sent", "channel", sender.Name(), "target", target)
			return
		}
		metrics.NotificationsTotal.WithLabelValues(sender.Name(), "failed").Inc()
		d.logger.Warn("Notification channel failed", "channel", sender.Name(), "target", target, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", sender.Name(), err))
	}

	err := errors.Join(errs...)
	d.logger.Error("Notification undelivered on every channel", "target", target, "error", err)
	d.deadLetter(ctx, target, message, err)
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, sender notify.Sender, target, message string) error {
	backoff := d.initialBackoff
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err = sender.Send(ctx, target, message); err == nil {
			return nil
		}
		d.logger.Debug("Notification attempt failed",
			"channel", sender.Name(),
			"attempt", attempt,
			"error", err)

		if attempt == d.maxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (after %d attempts: %v)", ctx.Err(), attempt, err)
		case <-timer.C:
		}
		backoff *= 2
	}
	return err
}

func (d *Dispatcher) deadLetter(ctx context.Context, target, message string, cause error) {
	if d.dlq == nil {
		return
	}

	payload, err := json.Marshal(undelivered{Target: target, Message: message})
	if err != nil {
		d.logger.Error("Failed to encode undelivered notification", "error", err)
		return
	}

	reason := "notification undelivered"
	if cause != nil {
		reason = reason + ": " + cause.Error()
	}
	if err := d.dlq.PublishToDLQ(ctx, target, payload, reason); err != nil && !errors.Is(err, producers.ErrDLQDisabled) {
		d.logger.Error("Failed to dead-letter notification", "target", target, "error", err)
	}
}

// Shutdown waits up to timeout for queued notifications to finish.
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	d.logger.Info("Shutting down notification pool", "running_workers", d.pool.Running())
	return d.pool.ReleaseTimeout(timeout)
}

// Running returns the number of busy workers.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Capacity returns the pool size.
func (d *Dispatcher) Capacity() int {
	return d.pool.Cap()
}
