package mongo

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/sendbulk-reconciler/internal/domain/audit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPollRecordRepository(t *testing.T) {
	repo := NewPollRecordRepository(newTestLogger(), &mongo.Database{})
	assert.NotNil(t, repo)
}

func TestPollRecordRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "sms_reconciler." + PollCollectionName

	mt.Run("create", func(mt *mtest.T) {
		repo := NewPollRecordRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Create(context.Background(), &audit.PollRecord{
			BatchID:    "2234556",
			StatusCode: 4,
			Outcome:    shared.OutcomeRefunded,
			PolledAt:   time.Now().UTC(),
		})
		require.NoError(mt, err)
	})

	mt.Run("create error", func(mt *mtest.T) {
		repo := NewPollRecordRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Create(context.Background(), &audit.PollRecord{BatchID: "2234556"})
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to archive poll record")
	})

	mt.Run("list by batch", func(mt *mtest.T) {
		repo := NewPollRecordRepository(newTestLogger(), mt.DB)
		polled := time.Date(2025, 7, 22, 15, 20, 0, 0, time.UTC)

		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "batch_id", Value: "2234556"},
			{Key: "status_code", Value: 4},
			{Key: "failed_count", Value: 10},
			{Key: "outcome", Value: "refunded"},
			{Key: "polled_at", Value: polled},
		})
		second := mtest.CreateCursorResponse(1, ns, mtest.NextBatch, bson.D{
			{Key: "batch_id", Value: "2234556"},
			{Key: "status_code", Value: 2},
			{Key: "outcome", Value: "still_pending"},
			{Key: "polled_at", Value: polled.Add(-3 * time.Minute)},
		})
		killCursors := mtest.CreateCursorResponse(0, ns, mtest.NextBatch)
		mt.AddMockResponses(first, second, killCursors)

		records, err := repo.ListByBatchID(context.Background(), "2234556", 20, 0)
		require.NoError(mt, err)
		require.Len(mt, records, 2)
		assert.Equal(mt, 4, records[0].StatusCode)
		assert.Equal(mt, 10, records[0].FailedCount)
		assert.Equal(mt, shared.OutcomeRefunded, records[0].Outcome)
		assert.True(mt, polled.Equal(records[0].PolledAt))
		assert.Equal(mt, shared.OutcomeStillPending, records[1].Outcome)
	})

	mt.Run("list error", func(mt *mtest.T) {
		repo := NewPollRecordRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad query",
		}))

		_, err := repo.ListByBatchID(context.Background(), "2234556", 20, 0)
		require.Error(mt, err)
	})

	mt.Run("count by batch", func(mt *mtest.T) {
		repo := NewPollRecordRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "n", Value: int32(3)},
		}))

		count, err := repo.CountByBatchID(context.Background(), "2234556")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), count)
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		repo := NewPollRecordRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, repo.EnsureIndexes(context.Background()))
	})
}
