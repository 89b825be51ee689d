package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/sendbulk-reconciler/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

const batchColumns = `batch_id, owner_id, reserved_credit::text, recipient_count, title, message_body,
		       notification_target, submitted_at, processed_at, lifecycle_state, gateway_status_code,
		       result_message, last_raw_gateway_payload, sent_count, failed_count, updated_at`

// BatchRepository implements batch.Repository for PostgreSQL
type BatchRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
	now     func() time.Time
}

func NewBatchRepository(logger *slog.Logger, db *persistence.PostgresDB) batch.Repository {
	return &BatchRepository{
		querier: db.Pool(),
		logger:  logger,
		now:     time.Now,
	}
}

func (r *BatchRepository) WithTx(tx pgx.Tx) batch.Repository {
	return &BatchRepository{
		querier: tx,
		logger:  r.logger,
		now:     r.now,
	}
}

// Create registers a submitted batch. A gateway id can be tracked once.
func (r *BatchRepository) Create(ctx context.Context, b *batch.Batch) error {
	query := `
		INSERT INTO bulk_sms_batches (batch_id, owner_id, reserved_credit, recipient_count, title, message_body,
		                              notification_target, submitted_at, lifecycle_state, sent_count, failed_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.querier.Exec(ctx, query,
		b.BatchID,
		b.OwnerID,
		b.ReservedCredit,
		b.RecipientCount,
		b.Title,
		b.MessageBody,
		b.NotificationTarget,
		b.SubmittedAt,
		string(b.State),
		b.SentCount,
		b.FailedCount,
		b.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return batch.ErrDuplicateBatch{BatchID: b.BatchID}
		}
		r.logger.Error("Failed to create batch", "batch_id", b.BatchID, "error", err)
		return fmt.Errorf("failed to create batch: %w", err)
	}

	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, batchID string) (*batch.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM bulk_sms_batches
		WHERE batch_id = $1
	`

	b, err := scanBatch(r.querier.QueryRow(ctx, query, batchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, batch.ErrBatchNotFound{BatchID: batchID}
		}
		r.logger.Error("Failed to get batch", "batch_id", batchID, "error", err)
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return b, nil
}

// ListPending returns the batches the reconciliation loop should poll.
func (r *BatchRepository) ListPending(ctx context.Context, maxAge time.Duration, limit int) ([]*batch.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM bulk_sms_batches
		WHERE lifecycle_state = 'PENDING' AND submitted_at >= $1
		ORDER BY submitted_at ASC
		LIMIT $2
	`

	return r.list(ctx, "pending", query, r.now().UTC().Add(-maxAge), limit)
}

// ListStale returns pending batches that fell out of the polling window.
func (r *BatchRepository) ListStale(ctx context.Context, maxAge time.Duration, limit int) ([]*batch.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM bulk_sms_batches
		WHERE lifecycle_state = 'PENDING' AND submitted_at < $1
		ORDER BY submitted_at ASC
		LIMIT $2
	`

	return r.list(ctx, "stale", query, r.now().UTC().Add(-maxAge), limit)
}

// CountStale counts every pending batch outside the polling window.
func (r *BatchRepository) CountStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx,
		`SELECT COUNT(*) FROM bulk_sms_batches WHERE lifecycle_state = 'PENDING' AND submitted_at < $1`,
		r.now().UTC().Add(-maxAge),
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count stale batches", "error", err)
		return 0, fmt.Errorf("failed to count stale batches: %w", err)
	}
	return count, nil
}

func (r *BatchRepository) List(ctx context.Context, state shared.BatchState, limit, offset int) ([]*batch.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM bulk_sms_batches
		WHERE ($1 = '' OR lifecycle_state = $1)
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.list(ctx, "all", query, string(state), limit, offset)
}

func (r *BatchRepository) Count(ctx context.Context, state shared.BatchState) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx,
		`SELECT COUNT(*) FROM bulk_sms_batches WHERE ($1 = '' OR lifecycle_state = $1)`,
		string(state),
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count batches", "state", state, "error", err)
		return 0, fmt.Errorf("failed to count batches: %w", err)
	}
	return count, nil
}

// MarkTerminal is the only way a batch leaves PENDING. The state predicate
// in the WHERE clause makes a concurrent second transition a no-op that is
// reported as batch.ErrBatchAlreadyTerminal.
func (r *BatchRepository) MarkTerminal(ctx context.Context, batchID string, t batch.Transition) error {
	query := `
		UPDATE bulk_sms_batches
		SET lifecycle_state = $2,
		    result_message = $3,
		    gateway_status_code = $4,
		    sent_count = $5,
		    failed_count = $6,
		    processed_at = $7,
		    last_raw_gateway_payload = $8,
		    updated_at = NOW()
		WHERE batch_id = $1 AND lifecycle_state = 'PENDING'
	`

	var payload *string
	if t.RawPayload != "" {
		payload = &t.RawPayload
	}

	result, err := r.querier.Exec(ctx, query,
		batchID,
		string(t.State),
		t.ResultMessage,
		t.GatewayStatusCode,
		t.SentCount,
		t.FailedCount,
		t.ProcessedAt,
		payload,
	)
	if err != nil {
		r.logger.Error("Failed to mark batch terminal", "batch_id", batchID, "state", t.State, "error", err)
		return fmt.Errorf("failed to mark batch terminal: %w", err)
	}

	if result.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = r.querier.QueryRow(ctx, `SELECT lifecycle_state FROM bulk_sms_batches WHERE batch_id = $1`, batchID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return batch.ErrBatchNotFound{BatchID: batchID}
		}
		return fmt.Errorf("failed to read batch state: %w", err)
	}

	r.logger.Info("Batch already left PENDING", "batch_id", batchID, "state", current)
	return batch.ErrBatchAlreadyTerminal{BatchID: batchID}
}

func (r *BatchRepository) list(ctx context.Context, name, query string, args ...interface{}) ([]*batch.Batch, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list batches", "list", name, "error", err)
		return nil, fmt.Errorf("failed to list %s batches: %w", name, err)
	}
	defer rows.Close()

	var batches []*batch.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s batches: %w", name, err)
	}

	return batches, nil
}

func scanBatch(row pgx.Row) (*batch.Batch, error) {
	var (
		b        batch.Batch
		reserved string
		state    string
	)
	if err := row.Scan(
		&b.BatchID,
		&b.OwnerID,
		&reserved,
		&b.RecipientCount,
		&b.Title,
		&b.MessageBody,
		&b.NotificationTarget,
		&b.SubmittedAt,
		&b.ProcessedAt,
		&state,
		&b.GatewayStatusCode,
		&b.ResultMessage,
		&b.LastRawGatewayPayload,
		&b.SentCount,
		&b.FailedCount,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	credit, err := decimal.NewFromString(reserved)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reserved credit %q: %w", reserved, err)
	}
	b.ReservedCredit = credit
	b.State = shared.BatchState(state)

	return &b, nil
}
