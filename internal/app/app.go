package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/services"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

const (
	maxRetries     = 5
	connectTimeout = 5 * time.Second
	initialBackoff = 500 * time.Millisecond
)

// App owns the long-lived clients. Everything else is built per process in
// cmd/turnflow and receives these by injection.
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Store  *services.GCSObjectStore
}

func NewApp(cfg *config.Config) (*App, error) {
	var (
		dbPool  *pgxpool.Pool
		err     error
		backoff = initialBackoff
	)

	for i := 1; i <= maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		dbPool, err = newDBPool(ctx, cfg.DBUrl)
		cancel()
		if err == nil {
			utils.Logger.Infof("Successfully connected to database on attempt %d", i)
			break
		}

		utils.Logger.WithError(err).Warnf(
			"Failed to connect to database on attempt %d/%d. Retrying in %v...",
			i, maxRetries, backoff,
		)

		if i == maxRetries {
			return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", maxRetries, err)
		}

		time.Sleep(backoff)
		backoff *= 2
	}

	return &App{
		Config: cfg,
		DB:     dbPool,
	}, nil
}

// OpenStore connects the photo bucket. Only the server needs it.
func (a *App) OpenStore(ctx context.Context) error {
	store, err := services.NewGCSObjectStore(ctx, a.Config.GCSBucket, a.Config.GCSCredentialsJSON)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	a.Store = store
	return nil
}

func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			utils.Logger.WithError(err).Warn("Failed to close storage client")
		}
	}
	if a.DB != nil {
		a.DB.Close()
		utils.Logger.Info("Database connection closed.")
	}
}

// newDBPool retires idle sockets before upstream proxies drop them and
// keeps the rest warm with a periodic health check.
func newDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	return pgxpool.ConnectConfig(ctx, cfg)
}
