package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Clients struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func NewClients(dbURL, redisAddr, redisPassword string, redisDB int) (*Clients, error) {
	db, err := NewPostgres(dbURL)
	if err != nil {
		return nil, err
	}

	redisClient, err := NewRedis(context.Background(), redisAddr, redisPassword, redisDB)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Clients{
		DB:    db,
		Redis: redisClient,
	}, nil
}

func NewPostgres(dbURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewRedis connects and pings Redis.
func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (c *Clients) Close() error {
	var firstErr error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

const activitySchema = `CREATE TABLE IF NOT EXISTS ad_activity (
	id SERIAL PRIMARY KEY,
	type TEXT NOT NULL,
	ad_id TEXT NOT NULL DEFAULT '',
	ad_type TEXT NOT NULL DEFAULT '',
	product_name TEXT NOT NULL DEFAULT '',
	post_type TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);`

func (c *Clients) CreateActivityTable() error {
	if _, err := c.DB.Exec(activitySchema); err != nil {
		return fmt.Errorf("failed to create ad_activity table: %w", err)
	}

	slog.Info("✅ Activity table is ready!")
	return nil
}
