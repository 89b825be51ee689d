// Package postgres provides PostgreSQL implementations of the domain
// repositories: the append-only credit ledger and the batch tracker.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/sendbulk-reconciler/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

// Numeric columns are selected as text and parsed into decimal.Decimal so
// no precision is lost on the way out of NUMERIC.
const entryColumns = `id, user_id, amount::text, resulting_balance::text, description, kind,
		       message_count, batch_id, status, created_at`

// CreditLedgerRepository implements credit.Repository for PostgreSQL
type CreditLedgerRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

func NewCreditLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) credit.Repository {
	return &CreditLedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx.
func (r *CreditLedgerRepository) WithTx(tx pgx.Tx) credit.Repository {
	return &CreditLedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// LatestBalance returns the resulting balance of the user's newest entry.
// Entries without a timestamp never win the ordering; seq breaks ties.
func (r *CreditLedgerRepository) LatestBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	query := `
		SELECT resulting_balance::text
		FROM credit_ledger_entries
		WHERE user_id = $1 AND created_at IS NOT NULL
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`

	return r.latestBalance(ctx, query, userID)
}

// LatestBalanceForUpdate serializes ledger writers of one user for the rest
// of the transaction, then reads the balance. The advisory lock also covers
// users that have no entries yet.
func (r *CreditLedgerRepository) LatestBalanceForUpdate(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if _, err := r.querier.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
		r.logger.Error("Failed to lock user ledger", "user_id", userID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to lock user ledger: %w", err)
	}

	query := `
		SELECT resulting_balance::text
		FROM credit_ledger_entries
		WHERE user_id = $1 AND created_at IS NOT NULL
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
		FOR UPDATE
	`

	return r.latestBalance(ctx, query, userID)
}

func (r *CreditLedgerRepository) latestBalance(ctx context.Context, query string, userID int64) (decimal.Decimal, error) {
	var raw string
	err := r.querier.QueryRow(ctx, query, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		r.logger.Error("Failed to read latest balance", "user_id", userID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to read latest balance: %w", err)
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", raw, err)
	}
	return balance, nil
}

// Append inserts one entry stamped with the database clock and copies the
// stamp back into e.CreatedAt. Callers hold the user's advisory lock, so the
// stamp follows write order regardless of the writing host's clock. A second
// refund for the same batch violates uq_credit_ledger_batch_refund and is
// reported as credit.ErrDuplicateRefund.
func (r *CreditLedgerRepository) Append(ctx context.Context, e *credit.Entry) error {
	query := `
		INSERT INTO credit_ledger_entries (id, user_id, amount, resulting_balance, description, kind, message_count, batch_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, clock_timestamp())
		RETURNING created_at
	`

	err := r.querier.QueryRow(ctx, query,
		e.ID,
		e.UserID,
		e.Amount,
		e.ResultingBalance,
		e.Description,
		string(e.Kind),
		e.MessageCount,
		e.BatchID,
		string(e.Status),
	).Scan(&e.CreatedAt)
	if err != nil {
		if persistence.IsUniqueViolation(err) && e.Kind == shared.EntryKindRefund && e.BatchID != nil {
			return credit.ErrDuplicateRefund{BatchID: *e.BatchID}
		}
		r.logger.Error("Failed to append ledger entry", "user_id", e.UserID, "kind", e.Kind, "error", err)
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

// ListByUser returns a page of the user's entries, newest first.
func (r *CreditLedgerRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*credit.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM credit_ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list ledger entries", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*credit.Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

func (r *CreditLedgerRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM credit_ledger_entries WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count ledger entries", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}

func scanEntry(row pgx.Row) (*credit.Entry, error) {
	var (
		e                 credit.Entry
		amount, resulting string
		kind, status      string
	)
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&amount,
		&resulting,
		&e.Description,
		&kind,
		&e.MessageCount,
		&e.BatchID,
		&status,
		&e.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	if e.ResultingBalance, err = decimal.NewFromString(resulting); err != nil {
		return nil, fmt.Errorf("failed to parse resulting balance %q: %w", resulting, err)
	}
	e.Kind = shared.EntryKind(kind)
	e.Status = shared.EntryStatus(status)

	return &e, nil
}
