package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sendbulk-reconciler/internal/admin_api"
	"github.com/sendbulk-reconciler/internal/admin_api/handler"
	"github.com/sendbulk-reconciler/internal/admin_api/service"
	"github.com/sendbulk-reconciler/internal/config"
	"github.com/sendbulk-reconciler/internal/data/mongo"
	"github.com/sendbulk-reconciler/internal/data/postgres"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/logger"
	"github.com/sendbulk-reconciler/internal/platform/messaging/producers"
	"github.com/sendbulk-reconciler/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("admin_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Admin API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"port", cfg.Server.Port,
	)

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

	batchRepo := postgres.NewBatchRepository(log, postgresDB)
	creditRepo := postgres.NewCreditLedgerRepository(log, postgresDB)
	pollRepo := mongo.NewPollRecordRepository(log, mongoDB.Database())
	ledger := credit.NewLedger(creditRepo, log)

	reconcileProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.ReconcileTopic)
	if err != nil {
		log.Error("Failed to initialize reconcile request producer", "error", err)
		os.Exit(1)
	}

	batchService := service.NewBatchService(postgresDB, batchRepo, ledger, pollRepo, reconcileProducer, log)
	creditService := service.NewCreditService(postgresDB, ledger, creditRepo, log)

	server := admin_api.NewServer(log, cfg, batchService, creditService, map[string]handler.Pinger{
		"postgres": postgresDB,
		"mongodb":  mongoDB,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", "error", err)
	}

	if err = reconcileProducer.Close(); err != nil {
		log.Error("Error closing reconcile request producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Admin API shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Admin API shutdown completed")
}
