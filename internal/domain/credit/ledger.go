package credit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Delta describes one signed change to a user's credit
type Delta struct {
	UserID       int64
	Amount       decimal.Decimal
	Description  string
	MessageCount int
	Kind         shared.EntryKind
	BatchID      string
	// RequireFunds rejects the delta with ErrInsufficientCredit when it
	// would take the balance below zero.
	RequireFunds bool
}

// Ledger computes balances and appends attributed deltas.
type Ledger struct {
	repo   Repository
	logger *slog.Logger
}

func NewLedger(repo Repository, logger *slog.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: logger.With("component", "credit_ledger"),
	}
}

// GetBalance returns the user's current balance. Read failures are logged
// and reported as a zero balance.
func (l *Ledger) GetBalance(ctx context.Context, userID int64) decimal.Decimal {
	balance, err := l.repo.LatestBalance(ctx, userID)
	if err != nil {
		l.logger.Error("Failed to read balance, treating as zero", "user_id", userID, "error", err)
		return decimal.Zero
	}
	return balance
}

// HasSufficientCredit reports whether the balance covers required.
func (l *Ledger) HasSufficientCredit(ctx context.Context, userID int64, required decimal.Decimal) bool {
	return l.GetBalance(ctx, userID).GreaterThanOrEqual(required)
}

// ApplyDelta appends an adjustment of amount to the user's ledger inside tx.
// A nil tx runs the read and the insert without a transaction.
func (l *Ledger) ApplyDelta(ctx context.Context, tx pgx.Tx, userID int64, amount decimal.Decimal, description string, messageCount int) (*Entry, error) {
	return l.Apply(ctx, tx, Delta{
		UserID:       userID,
		Amount:       amount,
		Description:  description,
		MessageCount: messageCount,
		Kind:         shared.EntryKindAdjustment,
	})
}

// Apply appends d inside tx. Unlike GetBalance, a failed balance read is
// returned so the caller's transaction rolls back instead of writing a wrong
// resulting balance.
func (l *Ledger) Apply(ctx context.Context, tx pgx.Tx, d Delta) (*Entry, error) {
	repo := l.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}

	balance, err := repo.LatestBalanceForUpdate(ctx, d.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance for user %d: %w", d.UserID, err)
	}

	if d.RequireFunds && balance.Add(d.Amount).IsNegative() {
		return nil, ErrInsufficientCredit
	}

	entry, err := NewEntry(balance, d)
	if err != nil {
		return nil, err
	}

	if err := repo.Append(ctx, entry); err != nil {
		return nil, err
	}

	l.logger.Info("Applied credit delta",
		"user_id", d.UserID,
		"kind", entry.Kind,
		"amount", entry.Amount.String(),
		"resulting_balance", entry.ResultingBalance.String(),
		"batch_id", d.BatchID)

	return entry, nil
}
