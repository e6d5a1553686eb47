package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/illegalcall/automark/internal/config"
	"github.com/illegalcall/automark/internal/worker"
	"github.com/illegalcall/automark/pkg/database"
	"github.com/illegalcall/automark/pkg/kafka"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment")
	}

	// Load configuration
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("✅ Connected to databases")

	if err := db.CreateActivityTable(); err != nil {
		slog.Error("Failed to create activity table", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer
	consumer, err := kafka.NewConsumer(ctx, cfg.Kafka)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	slog.Info("✅ Connected to Kafka")

	// Create and start worker
	w := worker.NewWorker(cfg, db, consumer)
	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Worker error", "error", err)
		os.Exit(1)
	}
	slog.Info("🛑 Worker stopped")
}
