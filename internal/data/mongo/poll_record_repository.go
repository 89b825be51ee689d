// Package mongo archives gateway poll results in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sendbulk-reconciler/internal/domain/audit"
)

const (
	// PollCollectionName is the name of the poll archive collection
	PollCollectionName = "gateway_polls"
)

// PollRecordRepository implements audit.Repository for MongoDB
type PollRecordRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewPollRecordRepository(logger *slog.Logger, db *mongo.Database) *PollRecordRepository {
	return &PollRecordRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the index backing per-batch history reads.
func (r *PollRecordRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(PollCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "batch_id", Value: 1}, {Key: "polled_at", Value: -1}},
		Options: options.Index().SetName("batch_id_polled_at"),
	})
	if err != nil {
		return fmt.Errorf("failed to create poll record index: %w", err)
	}
	return nil
}

// Create appends one poll record. Records are never updated.
func (r *PollRecordRepository) Create(ctx context.Context, record *audit.PollRecord) error {
	if _, err := r.db.Collection(PollCollectionName).InsertOne(ctx, record); err != nil {
		r.logger.Error("Failed to archive poll record",
			"batch_id", record.BatchID,
			"error", err)
		return fmt.Errorf("failed to archive poll record: %w", err)
	}
	return nil
}

// ListByBatchID returns a page of a batch's poll history, newest first.
func (r *PollRecordRepository) ListByBatchID(ctx context.Context, batchID string, limit, offset int) ([]*audit.PollRecord, error) {
	filter := bson.M{"batch_id": batchID}
	opts := options.Find().
		SetSort(bson.D{{Key: "polled_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.db.Collection(PollCollectionName).Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get poll records",
			"batch_id", batchID,
			"error", err)
		return nil, fmt.Errorf("failed to get poll records: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*audit.PollRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode poll records",
			"batch_id", batchID,
			"error", err)
		return nil, fmt.Errorf("failed to decode poll records: %w", err)
	}

	return records, nil
}

func (r *PollRecordRepository) CountByBatchID(ctx context.Context, batchID string) (int64, error) {
	count, err := r.db.Collection(PollCollectionName).CountDocuments(ctx, bson.M{"batch_id": batchID})
	if err != nil {
		r.logger.Error("Failed to count poll records",
			"batch_id", batchID,
			"error", err)
		return 0, fmt.Errorf("failed to count poll records: %w", err)
	}
	return count, nil
}
