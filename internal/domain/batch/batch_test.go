package batch

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch(t *testing.T) {
	t.Run("valid batch starts pending", func(t *testing.T) {
		b, err := NewBatch("2234556", 12, decimal.NewFromInt(50), 10, "Promo", "Hello لغو11", "09120000000")
		require.NoError(t, err)
		assert.Equal(t, shared.BatchStatePending, b.State)
		assert.False(t, b.IsTerminal())
		assert.Nil(t, b.ProcessedAt)
		assert.True(t, b.ReservedCredit.Equal(decimal.NewFromInt(50)))
		assert.WithinDuration(t, time.Now(), b.SubmittedAt, time.Second)
	})

	tests := []struct {
		name     string
		batchID  string
		owner    int64
		reserved decimal.Decimal
		count    int
		err      error
	}{
		{"empty id", "", 1, decimal.NewFromInt(1), 1, ErrEmptyBatchID},
		{"bad owner", "b", 0, decimal.NewFromInt(1), 1, ErrInvalidOwner},
		{"negative reservation", "b", 1, decimal.NewFromInt(-1), 1, ErrNegativeReservation},
		{"no recipients", "b", 1, decimal.NewFromInt(1), 0, ErrInvalidRecipientCount},
		{"sub-cent reservation", "b", 1, decimal.RequireFromString("10.005"), 1, ErrReservationPrecision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBatch(tt.batchID, tt.owner, tt.reserved, tt.count, "", "", "")
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestBatch_Age(t *testing.T) {
	now := time.Now()
	b := &Batch{SubmittedAt: now.Add(-25 * time.Hour)}
	assert.Equal(t, 25*time.Hour, b.Age(now))
}

func TestBatchState(t *testing.T) {
	assert.False(t, shared.BatchStatePending.IsTerminal())
	assert.True(t, shared.BatchStateConfirmed.IsTerminal())
	assert.True(t, shared.BatchStateRefundedFailed.IsTerminal())
	assert.True(t, shared.BatchStateRefundedCancelled.IsTerminal())
	assert.False(t, shared.BatchState("DONE").IsTerminal())

	assert.False(t, shared.BatchStateConfirmed.Refunds())
	assert.True(t, shared.BatchStateRefundedFailed.Refunds())
	assert.True(t, shared.BatchStateRefundedCancelled.Refunds())
}

func TestErrors_Is(t *testing.T) {
	terminal := fmt.Errorf("mark: %w", ErrBatchAlreadyTerminal{BatchID: "b-1"})
	assert.True(t, errors.Is(terminal, ErrBatchAlreadyTerminal{}))
	assert.True(t, errors.Is(terminal, ErrBatchAlreadyTerminal{BatchID: "b-1"}))
	assert.False(t, errors.Is(terminal, ErrBatchAlreadyTerminal{BatchID: "b-2"}))
	assert.False(t, errors.Is(terminal, ErrBatchNotFound{}))

	notFound := fmt.Errorf("get: %w", ErrBatchNotFound{BatchID: "b-3"})
	assert.True(t, errors.Is(notFound, ErrBatchNotFound{}))
	assert.Equal(t, "batch not found: b-3", ErrBatchNotFound{BatchID: "b-3"}.Error())

	dup := ErrDuplicateBatch{BatchID: "b-4"}
	assert.True(t, errors.Is(dup, ErrDuplicateBatch{}))
	assert.False(t, errors.Is(dup, ErrDuplicateBatch{BatchID: "b-5"}))
}
