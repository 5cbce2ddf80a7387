package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/p4solution/portfolio-backend/config"
	"github.com/p4solution/portfolio-backend/internal/db"
)

// OpenDB connects the configured persistence backend and verifies it answers.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (db.Adapter, error) {
	a, err := db.Open(ctx, db.Options{
		Driver:       cfg.Driver,
		SQLitePath:   cfg.SQLitePath,
		URL:          cfg.URL,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		PingTO:       2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return a, nil
}
