package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sendbulk-reconciler/internal/admin_api/middleware"
	"github.com/sendbulk-reconciler/internal/domain/audit"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func recipients(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("0912%07d", i))
	}
	return out
}

func validRegistration() Registration {
	return Registration{
		BatchID:            "2234556",
		OwnerID:            42,
		Title:              "Campaign",
		Message:            "Spring sale starts today لغو11",
		Recipients:         recipients(10),
		ReservedCredit:     decimal.NewFromInt(50),
		NotificationTarget: "09121234567",
	}
}

type batchServiceFixture struct {
	tx         *fakeTxRunner
	batchRepo  *MockBatchRepository
	creditRepo *MockCreditRepository
	pollRepo   *MockPollRepository
	producer   *MockMessagePublisher
	service    BatchService
}

func newBatchServiceFixture() *batchServiceFixture {
	f := &batchServiceFixture{
		tx:         &fakeTxRunner{},
		batchRepo:  &MockBatchRepository{},
		creditRepo: &MockCreditRepository{},
		pollRepo:   &MockPollRepository{},
		producer:   &MockMessagePublisher{},
	}
	ledger := credit.NewLedger(f.creditRepo, newTestLogger())
	f.service = NewBatchService(f.tx, f.batchRepo, ledger, f.pollRepo, f.producer, newTestLogger())
	return f
}

func (f *batchServiceFixture) assertExpectations(t *testing.T) {
	f.batchRepo.AssertExpectations(t)
	f.creditRepo.AssertExpectations(t)
	f.pollRepo.AssertExpectations(t)
	f.producer.AssertExpectations(t)
}

func TestBatchService_RegisterBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Success reserves credit and creates a pending batch", func(t *testing.T) {
		f := newBatchServiceFixture()
		reg := validRegistration()
		reg.Recipients = append(reg.Recipients, "09120000000", "12345", "۰۹۱۲۰۰۰۰۰۱۰")

		f.creditRepo.On("LatestBalance", ctx, int64(42)).Return(decimal.NewFromInt(200), nil).Once()
		f.creditRepo.On("LatestBalanceForUpdate", ctx, int64(42)).Return(decimal.NewFromInt(200), nil).Once()
		f.creditRepo.On("Append", ctx, mock.MatchedBy(func(e *credit.Entry) bool {
			return e.Kind == shared.EntryKindReservation &&
				e.Amount.Equal(decimal.NewFromInt(-50)) &&
				e.ResultingBalance.Equal(decimal.NewFromInt(150)) &&
				e.MessageCount == 11 &&
				e.BatchID != nil && *e.BatchID == "2234556" &&
				e.Description == credit.ReservationDescription(11)
		})).Return(nil).Once()
		f.batchRepo.On("Create", ctx, mock.MatchedBy(func(b *batch.Batch) bool {
			return b.BatchID == "2234556" && b.State == shared.BatchStatePending && b.RecipientCount == 11
		})).Return(nil).Once()

		b, err := f.service.RegisterBatch(ctx, reg)

		require.NoError(t, err)
		assert.Equal(t, 11, b.RecipientCount)
		assert.True(t, b.ReservedCredit.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, 1, f.tx.calls)
		f.assertExpectations(t)
	})

	t.Run("Insufficient balance fails before the transaction", func(t *testing.T) {
		f := newBatchServiceFixture()
		f.creditRepo.On("LatestBalance", ctx, int64(42)).Return(decimal.NewFromInt(49), nil).Once()

		b, err := f.service.RegisterBatch(ctx, validRegistration())

		assert.Nil(t, b)
		assert.ErrorIs(t, err, credit.ErrInsufficientCredit)
		assert.Equal(t, 0, f.tx.calls)
		f.assertExpectations(t)
	})

	t.Run("Balance drained concurrently fails inside the transaction", func(t *testing.T) {
		f := newBatchServiceFixture()
		f.creditRepo.On("LatestBalance", ctx, int64(42)).Return(decimal.NewFromInt(60), nil).Once()
		f.creditRepo.On("LatestBalanceForUpdate", ctx, int64(42)).Return(decimal.NewFromInt(10), nil).Once()

		_, err := f.service.RegisterBatch(ctx, validRegistration())

		assert.ErrorIs(t, err, credit.ErrInsufficientCredit)
		f.batchRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("Duplicate batch id", func(t *testing.T) {
		f := newBatchServiceFixture()
		f.creditRepo.On("LatestBalance", ctx, int64(42)).Return(decimal.NewFromInt(100), nil).Once()
		f.creditRepo.On("LatestBalanceForUpdate", ctx, int64(42)).Return(decimal.NewFromInt(100), nil).Once()
		f.creditRepo.On("Append", ctx, mock.Anything).Return(nil).Once()
		f.batchRepo.On("Create", ctx, mock.Anything).Return(batch.ErrDuplicateBatch{BatchID: "2234556"}).Once()

		_, err := f.service.RegisterBatch(ctx, validRegistration())

		assert.ErrorIs(t, err, batch.ErrDuplicateBatch{})
		f.assertExpectations(t)
	})

	t.Run("Invalid registration writes nothing", func(t *testing.T) {
		f := newBatchServiceFixture()
		reg := validRegistration()
		reg.Recipients = recipients(9)

		_, err := f.service.RegisterBatch(ctx, reg)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "recipients", validationErr.Field)
		assert.Equal(t, 0, f.tx.calls)
		f.assertExpectations(t)
	})
}

func TestBatchService_ListBatches(t *testing.T) {
	ctx := context.Background()

	t.Run("Second page", func(t *testing.T) {
		f := newBatchServiceFixture()
		page := []*batch.Batch{{BatchID: "a"}, {BatchID: "b"}}
		f.batchRepo.On("Count", ctx, shared.BatchStatePending).Return(int64(12), nil).Once()
		f.batchRepo.On("List", ctx, shared.BatchStatePending, 10, 10).Return(page, nil).Once()

		batches, total, err := f.service.ListBatches(ctx, shared.BatchStatePending, 2, 10)

		require.NoError(t, err)
		assert.Equal(t, int64(12), total)
		assert.Equal(t, page, batches)
		f.assertExpectations(t)
	})

	t.Run("Empty skips the list query", func(t *testing.T) {
		f := newBatchServiceFixture()
		f.batchRepo.On("Count", ctx, shared.BatchState("")).Return(int64(0), nil).Once()

		batches, total, err := f.service.ListBatches(ctx, "", 1, 10)

		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, batches)
		f.assertExpectations(t)
	})

	t.Run("Count error", func(t *testing.T) {
		f := newBatchServiceFixture()
		f.batchRepo.On("Count", ctx, shared.BatchState("")).Return(int64(0), errors.New("db down")).Once()

		_, _, err := f.service.ListBatches(ctx, "", 1, 10)
		assert.Error(t, err)
	})
}

func TestBatchService_ListPolls(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newBatchServiceFixture()
		records := []*audit.PollRecord{{BatchID: "2234556", StatusCode: 2}}
		f.batchRepo.On("GetByID", ctx, "2234556").Return(&batch.Batch{BatchID: "2234556"}, nil).Once()
		f.pollRepo.On("CountByBatchID", ctx, "2234556").Return(int64(1), nil).Once()
		f.pollRepo.On("ListByBatchID", ctx, "2234556", 20, 0).Return(records, nil).Once()

		got, total, err := f.service.ListPolls(ctx, "2234556", 1, 20)

		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, records, got)
		f.assertExpectations(t)
	})

	t.Run("Unknown batch", func(t *testing.T) {
		f := newBatchServiceFixture()
		f.batchRepo.On("GetByID", ctx, "missing").Return(nil, batch.ErrBatchNotFound{BatchID: "missing"}).Once()

		_, _, err := f.service.ListPolls(ctx, "missing", 1, 20)

		assert.ErrorIs(t, err, batch.ErrBatchNotFound{})
		f.assertExpectations(t)
	})
}

func TestBatchService_RequestReconcile(t *testing.T) {
	ctx := middleware.WithCorrelationID(context.Background(), "corr-9")

	t.Run("Pending batch is queued", func(t *testing.T) {
		f := newBatchServiceFixture()
		f.batchRepo.On("GetByID", ctx, "2234556").Return(&batch.Batch{BatchID: "2234556", State: shared.BatchStatePending}, nil).Once()
		f.producer.On("Publish", ctx, "2234556", mock.MatchedBy(func(r *shared.ReconcileRequest) bool {
			return r.BatchID == "2234556" && r.RequestedBy == "ops" && r.CorrelationID == "corr-9"
		})).Return(nil).Once()

		request, err := f.service.RequestReconcile(ctx, "2234556", "ops")

		require.NoError(t, err)
		assert.Equal(t, "corr-9", request.CorrelationID)
		assert.False(t, request.RequestedAt.IsZero())
		f.assertExpectations(t)
	})

	t.Run("Terminal batch is refused", func(t *testing.T) {
		f := newBatchServiceFixture()
		f.batchRepo.On("GetByID", ctx, "2234556").Return(&batch.Batch{BatchID: "2234556", State: shared.BatchStateConfirmed}, nil).Once()

		_, err := f.service.RequestReconcile(ctx, "2234556", "ops")

		assert.ErrorIs(t, err, batch.ErrBatchAlreadyTerminal{})
		f.assertExpectations(t)
	})

	t.Run("Unknown batch", func(t *testing.T) {
		f := newBatchServiceFixture()
		f.batchRepo.On("GetByID", ctx, "missing").Return(nil, batch.ErrBatchNotFound{BatchID: "missing"}).Once()

		_, err := f.service.RequestReconcile(ctx, "missing", "ops")

		assert.ErrorIs(t, err, batch.ErrBatchNotFound{})
		f.assertExpectations(t)
	})

	t.Run("Publish failure", func(t *testing.T) {
		f := newBatchServiceFixture()
		f.batchRepo.On("GetByID", ctx, "2234556").Return(&batch.Batch{BatchID: "2234556", State: shared.BatchStatePending}, nil).Once()
		f.producer.On("Publish", ctx, "2234556", mock.Anything).Return(errors.New("broker down")).Once()

		_, err := f.service.RequestReconcile(ctx, "2234556", "ops")

		assert.ErrorContains(t, err, "broker down")
		f.assertExpectations(t)
	})
}
