package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sendbulk-reconciler/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoDB holds the client of the gateway poll archive. Archive writes are
// best-effort, so a single acknowledged write is enough.
type MongoDB struct {
	logger      *slog.Logger
	client      *mongo.Client
	database    *mongo.Database
	pingTimeout time.Duration
}

func NewMongoDB(ctx context.Context, logger *slog.Logger, cfg *config.MongoDBConfig) (*MongoDB, error) {
	if cfg.Database == "" {
		return nil, errors.New("mongodb database name cannot be empty")
	}
	logger = logger.With("component", "mongodb", "database", cfg.Database)

	client, err := mongo.Connect(ctx, archiveClientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := &MongoDB{
		logger:      logger,
		client:      client,
		database:    client.Database(cfg.Database),
		pingTimeout: cfg.Timeout,
	}
	if err := db.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", "max_pool_size", cfg.MaxPoolSize)
	return db, nil
}

func archiveClientOptions(cfg *config.MongoDBConfig) *options.ClientOptions {
	return options.Client().
		ApplyURI(cfg.URI).
		SetAppName("sms-reconciler").
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetTimeout(cfg.Timeout).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.W1())
}

// Database is the archive database the poll record repository writes to.
func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// Ping checks the primary is reachable within the configured timeout. It
// backs the admin API health check.
func (m *MongoDB) Ping(ctx context.Context) error {
	if m.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.pingTimeout)
		defer cancel()
	}
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoDB) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	m.logger.Info("Closed MongoDB connection")
	return nil
}
