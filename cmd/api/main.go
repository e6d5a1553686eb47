package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/illegalcall/automark/internal/api"
	"github.com/illegalcall/automark/internal/automark"
	"github.com/illegalcall/automark/internal/config"
	"github.com/illegalcall/automark/internal/events"
	"github.com/illegalcall/automark/internal/profile"
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

	// Open the profile store
	kv, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open profile storage", "error", err)
		os.Exit(1)
	}
	defer closeKV()
	store := profile.Open(ctx, kv, cfg.Profile.Key)
	slog.Info("✅ Profile loaded", "backend", cfg.Profile.Backend)

	client := automark.NewClient(cfg.Backend.BaseURL, automark.WithTimeout(cfg.Backend.Timeout))

	// Activity events are optional
	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ctx, cfg.Kafka)
		if err != nil {
			slog.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		kp := events.NewKafkaPublisher(producer, cfg.Kafka.Topic)
		defer kp.Close()
		publisher = kp
		slog.Info("✅ Connected to Kafka")
	}

	// Create and start server
	server, err := api.NewServer(cfg, store, client, publisher)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("🚀 Server running", "port", cfg.Server.Port, "backend", client.BaseURL())
		if err := server.Start(); err != nil {
			slog.Error("❌ Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("🛑 Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

func openKV(ctx context.Context, cfg *config.Config) (profile.KV, func(), error) {
	switch cfg.Profile.Backend {
	case config.ProfileBackendFile:
		kv, err := profile.NewFileKV(cfg.Profile.Dir)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() {}, nil
	case config.ProfileBackendRedis:
		client, err := database.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("✅ Connected to Redis")
		return profile.NewRedisKV(client), func() { client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown profile backend %q", cfg.Profile.Backend)
}
