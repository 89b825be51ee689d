package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CreditServiceImpl implements the CreditService interface
type CreditServiceImpl struct {
	txRunner   TxRunner
	ledger     *credit.Ledger
	creditRepo credit.Repository
	logger     *slog.Logger
}

func NewCreditService(txRunner TxRunner, ledger *credit.Ledger, creditRepo credit.Repository, logger *slog.Logger) CreditService {
	return &CreditServiceImpl{
		txRunner:   txRunner,
		ledger:     ledger,
		creditRepo: creditRepo,
		logger:     logger.With("component", "credit_service"),
	}
}

func (s *CreditServiceImpl) GetBalance(ctx context.Context, userID int64) decimal.Decimal {
	return s.ledger.GetBalance(ctx, userID)
}

func (s *CreditServiceImpl) ListEntries(ctx context.Context, userID int64, page, perPage int) ([]*credit.Entry, int64, error) {
	total, err := s.creditRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*credit.Entry{}, 0, nil
	}

	entries, err := s.creditRepo.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *CreditServiceImpl) Adjust(ctx context.Context, userID int64, amount decimal.Decimal, description string) (*credit.Entry, error) {
	description = strings.TrimSpace(description)
	if amount.IsZero() {
		return nil, credit.ErrZeroAmount
	}
	if !shared.FitsCreditScale(amount) {
		return nil, credit.ErrAmountPrecision
	}
	if description == "" {
		return nil, credit.ErrEmptyDescription
	}

	var entry *credit.Entry
	err := s.txRunner.ExecuteTxWithRetry(ctx, func(tx pgx.Tx) error {
		var err error
		entry, err = s.ledger.Apply(ctx, tx, credit.Delta{
			UserID:       userID,
			Amount:       amount,
			Description:  description,
			Kind:         shared.EntryKindAdjustment,
			RequireFunds: amount.IsNegative(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Credit adjusted",
		"user_id", userID,
		"amount", amount.String(),
		"resulting_balance", entry.ResultingBalance.String())

	return entry, nil
}
