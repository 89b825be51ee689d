// Package config provides configuration structures and validation for the
// reconciler and admin API binaries. Values come from an optional .env file
// and the process environment, layered over defaults.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration. Both binaries load the
// same structure; each one only reads the sections it wires.
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Metrics      MetricsConfig
	Kafka        KafkaConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	Reconciler   ReconcilerConfig
	Gateway      GatewayConfig
	Notification NotificationConfig
	WorkerPool   WorkerPoolConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or text
}

// ServerConfig contains HTTP server configuration settings for the admin API
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// MetricsConfig controls the standalone Prometheus listener of the reconciler
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	OutcomeTopic      string // terminal batch transitions are published here
	ReconcileTopic    string // manual reconcile requests from the admin API
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
	TxMaxRetries    int // retries for serialization failures and deadlocks
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// ReconcilerConfig drives the reconciliation loop.
type ReconcilerConfig struct {
	InitialDelay    time.Duration
	PollingInterval time.Duration
	ErrorBackoff    time.Duration // wait after a tick that could not list batches
	PollDelay       time.Duration // pause between two gateway polls in one tick
	MaxBatchAge     time.Duration // pending batches older than this are stale
	BatchLimit      int
	TxTimeout       time.Duration
}

// GatewayConfig holds the SMS gateway credentials and endpoints.
type GatewayConfig struct {
	StatusURL string
	SendURL   string
	Username  string
	Password  string
	From      string
	Timeout   time.Duration
	Timezone  string
}

// NotificationConfig controls outcome notifications.
type NotificationConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	SMTPHost       string // email fallback is disabled when empty
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	EmailFrom      string
	OpsEmail       string
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// validate performs validation of all configuration values and reports every
// violation at once.
func (c *Config) validate() error {
	var validationErrors []string

	// Server
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		validationErrors = append(validationErrors, "METRICS_PORT must be greater than 0")
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.OutcomeTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_OUTCOME_TOPIC is required")
	}
	if c.Kafka.ReconcileTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_RECONCILE_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// PostgreSQL
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}
	if c.Postgres.TxMaxRetries < 0 {
		validationErrors = append(validationErrors, "POSTGRES_TX_MAX_RETRIES must not be negative")
	}

	// MongoDB
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}

	// Reconciler
	if c.Reconciler.InitialDelay < 0 {
		validationErrors = append(validationErrors, "RECONCILER_INITIAL_DELAY must not be negative")
	}
	if c.Reconciler.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_POLLING_INTERVAL must be greater than 0")
	}
	if c.Reconciler.ErrorBackoff <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_ERROR_BACKOFF must be greater than 0")
	}
	if c.Reconciler.PollDelay < 0 {
		validationErrors = append(validationErrors, "RECONCILER_POLL_DELAY must not be negative")
	}
	if c.Reconciler.MaxBatchAge <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_MAX_BATCH_AGE must be greater than 0")
	}
	if c.Reconciler.BatchLimit <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_BATCH_LIMIT must be greater than 0")
	}
	if c.Reconciler.TxTimeout <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_TX_TIMEOUT must be greater than 0")
	}

	// Gateway
	if c.Gateway.StatusURL == "" {
		validationErrors = append(validationErrors, "GATEWAY_STATUS_URL is required")
	}
	if c.Gateway.SendURL == "" {
		validationErrors = append(validationErrors, "GATEWAY_SEND_URL is required")
	}
	if c.Gateway.Timeout <= 0 {
		validationErrors = append(validationErrors, "GATEWAY_TIMEOUT must be greater than 0")
	}
	if c.Gateway.Timezone == "" {
		validationErrors = append(validationErrors, "GATEWAY_TIMEZONE is required")
	}

	// Notification
	if c.Notification.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "NOTIFICATION_MAX_ATTEMPTS must be greater than 0")
	}
	if c.Notification.InitialBackoff <= 0 {
		validationErrors = append(validationErrors, "NOTIFICATION_INITIAL_BACKOFF must be greater than 0")
	}
	if c.Notification.SMTPHost != "" && c.Notification.OpsEmail == "" {
		validationErrors = append(validationErrors, "NOTIFICATION_OPS_EMAIL is required when NOTIFICATION_SMTP_HOST is set")
	}

	// WorkerPool
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
