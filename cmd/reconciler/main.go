package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/sendbulk-reconciler/internal/config"
	"github.com/sendbulk-reconciler/internal/data/mongo"
	"github.com/sendbulk-reconciler/internal/data/postgres"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/logger"
	"github.com/sendbulk-reconciler/internal/platform/calendar"
	"github.com/sendbulk-reconciler/internal/platform/gateway"
	"github.com/sendbulk-reconciler/internal/platform/messaging/consumers"
	"github.com/sendbulk-reconciler/internal/platform/messaging/producers"
	"github.com/sendbulk-reconciler/internal/platform/metrics"
	"github.com/sendbulk-reconciler/internal/platform/notify"
	"github.com/sendbulk-reconciler/internal/platform/persistence"
	"github.com/sendbulk-reconciler/internal/reconciler/components"
	"github.com/sendbulk-reconciler/internal/reconciler/consumer"
	"github.com/sendbulk-reconciler/internal/reconciler/notifier"
	"github.com/sendbulk-reconciler/internal/reconciler/poller"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("reconciler")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Reconciler",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	location, err := calendar.LoadLocation(cfg.Gateway.Timezone)
	if err != nil {
		log.Error("Failed to load gateway time zone", "error", err)
		os.Exit(1)
	}

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	batchRepo := postgres.NewBatchRepository(log, postgresDB)
	creditRepo := postgres.NewCreditLedgerRepository(log, postgresDB)
	pollRepo := mongo.NewPollRecordRepository(log, mongoDB.Database())
	if err = pollRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create poll record indexes", "error", err)
		os.Exit(1)
	}
	ledger := credit.NewLedger(creditRepo, log)

	gatewayClient, err := gateway.NewClient(&cfg.Gateway, nil, log)
	if err != nil {
		log.Error("Failed to initialize gateway client", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers
	outcomeProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.OutcomeTopic)
	if err != nil {
		log.Error("Failed to initialize outcome Kafka producer", "error", err)
		os.Exit(1)
	}

	// dlqProducer is nil when KAFKA_DLQ_TOPIC is empty; its methods are nil-safe.
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Notification channels, tried in order
	senders := []notify.Sender{notify.NewSMSSender(&cfg.Gateway, nil)}
	if cfg.Notification.SMTPHost != "" {
		senders = append(senders, notify.NewEmailSender(&cfg.Notification))
	}

	dispatcher, err := notifier.NewDispatcher(&cfg.Notification, cfg.WorkerPool.Size, senders, dlqProducer, location, log)
	if err != nil {
		log.Error("Failed to initialize notification dispatcher", "error", err)
		os.Exit(1)
	}

	reconciler := components.CreateReconciliationService(
		postgresDB,
		gatewayClient,
		batchRepo,
		ledger,
		pollRepo,
		outcomeProducer,
		dispatcher,
		cfg,
		log,
	)

	batchPoller := poller.NewPoller(&cfg.Reconciler, batchRepo, reconciler, log)
	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka)
	requestHandler := consumer.NewReconcileRequestHandler(log, batchRepo, reconciler, dlqProducer)

	errChan := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting batch poller",
			"interval", cfg.Reconciler.PollingInterval.String(),
			"batch_limit", cfg.Reconciler.BatchLimit,
		)
		batchPoller.Start(appCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.ReconcileTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Run(appCtx, requestHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("Starting metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// The poller finishes its current batch before returning
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Pending notifications still need the DLQ producer, so drain them first
	log.Info("Draining notification pool", "running_workers", dispatcher.Running())
	if err = dispatcher.Shutdown(10 * time.Second); err != nil {
		log.Error("Notification pool did not drain", "error", err)
	}

	if metricsServer != nil {
		if err = metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Error stopping metrics server", "error", err)
		}
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if err = outcomeProducer.Close(); err != nil {
		log.Error("Error closing outcome Kafka producer", "error", err)
	}

	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Reconciler shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Reconciler shutdown completed")
}
