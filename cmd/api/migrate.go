package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/p4solution/portfolio-backend/config"
	"github.com/p4solution/portfolio-backend/internal/bootstrap"
	"github.com/p4solution/portfolio-backend/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		log, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		a, err := bootstrap.OpenDB(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema up to date", zap.String("driver", string(a.Dialect())))
		return nil
	},
}
