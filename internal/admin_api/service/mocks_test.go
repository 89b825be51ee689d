package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sendbulk-reconciler/internal/domain/audit"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockBatchRepository struct {
	mock.Mock
}

func (m *MockBatchRepository) Create(ctx context.Context, b *batch.Batch) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockBatchRepository) GetByID(ctx context.Context, batchID string) (*batch.Batch, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.Batch), args.Error(1)
}

func (m *MockBatchRepository) ListPending(ctx context.Context, maxAge time.Duration, limit int) ([]*batch.Batch, error) {
	args := m.Called(ctx, maxAge, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*batch.Batch), args.Error(1)
}

func (m *MockBatchRepository) ListStale(ctx context.Context, maxAge time.Duration, limit int) ([]*batch.Batch, error) {
	args := m.Called(ctx, maxAge, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*batch.Batch), args.Error(1)
}

func (m *MockBatchRepository) CountStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	args := m.Called(ctx, maxAge)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBatchRepository) List(ctx context.Context, state shared.BatchState, limit, offset int) ([]*batch.Batch, error) {
	args := m.Called(ctx, state, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*batch.Batch), args.Error(1)
}

func (m *MockBatchRepository) Count(ctx context.Context, state shared.BatchState) (int64, error) {
	args := m.Called(ctx, state)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBatchRepository) MarkTerminal(ctx context.Context, batchID string, t batch.Transition) error {
	return m.Called(ctx, batchID, t).Error(0)
}

func (m *MockBatchRepository) WithTx(tx pgx.Tx) batch.Repository {
	return m
}

type MockCreditRepository struct {
	mock.Mock
}

func (m *MockCreditRepository) LatestBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockCreditRepository) LatestBalanceForUpdate(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockCreditRepository) Append(ctx context.Context, entry *credit.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockCreditRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*credit.Entry, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*credit.Entry), args.Error(1)
}

func (m *MockCreditRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCreditRepository) WithTx(tx pgx.Tx) credit.Repository {
	return m
}

type MockPollRepository struct {
	mock.Mock
}

func (m *MockPollRepository) Create(ctx context.Context, record *audit.PollRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockPollRepository) ListByBatchID(ctx context.Context, batchID string, limit, offset int) ([]*audit.PollRecord, error) {
	args := m.Called(ctx, batchID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.PollRecord), args.Error(1)
}

func (m *MockPollRepository) CountByBatchID(ctx context.Context, batchID string) (int64, error) {
	args := m.Called(ctx, batchID)
	return args.Get(0).(int64), args.Error(1)
}

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockMessagePublisher) Close() error {
	return m.Called().Error(0)
}

// fakeTxRunner runs fn once without a real transaction. The mocked
// repositories ignore the nil tx.
type fakeTxRunner struct {
	calls int
}

func (r *fakeTxRunner) ExecuteTxWithRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	r.calls++
	return fn(nil)
}
