package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/p4solution/portfolio-backend/config"
	"github.com/p4solution/portfolio-backend/internal/api/http/middleware"
	"github.com/p4solution/portfolio-backend/internal/auth"
	"github.com/p4solution/portfolio-backend/internal/auth/service"
	"github.com/p4solution/portfolio-backend/internal/bootstrap"
	"github.com/p4solution/portfolio-backend/internal/jobs"
	cronjob "github.com/p4solution/portfolio-backend/internal/jobs/cron"
	"github.com/p4solution/portfolio-backend/internal/logger"
	"github.com/p4solution/portfolio-backend/internal/media"
	"github.com/p4solution/portfolio-backend/internal/projects/repository"
	projectservice "github.com/p4solution/portfolio-backend/internal/projects/service"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
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

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	bootstrap.SetGinMode(cfg.App.Environment)

	a, err := bootstrap.OpenDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	backend, local, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}

	c := bootstrap.OpenCache(ctx, cfg.Cache, log)
	defer c.Close()

	secret, err := bootstrap.JWTSecret(cfg, log)
	if err != nil {
		return err
	}
	tokens := auth.NewTokens(secret, cfg.Auth.TokenTTL)
	if cfg.Auth.AdminUsername == "" || cfg.Auth.AdminPassword == "" {
		log.Warn("ADMIN_USERNAME or ADMIN_PASSWORD not set, admin login disabled")
	}

	m := media.NewManager(backend, log, media.Options{
		Folder:       cfg.Storage.Folder,
		MaxBytes:     cfg.Storage.MaxUploadBytes,
		MaxFiles:     cfg.Storage.MaxFiles,
		PurgeTimeout: cfg.Storage.PurgeTimeout,
	})
	svc := projectservice.NewProjectService(repository.NewProjectRepository(a), m, c, log)
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		Log:         log,
		DB:          a,
		Projects:    svc,
		Tokens:      tokens,
		Auth:        service.NewAuthService(tokens, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword),
		Mailer:      bootstrap.NewMailer(cfg.Mail),
		MailTo:      cfg.Mail.To,
		Limiter:     limiter,
		Local:       local,
		// Whole-request cap: every file at the limit plus form fields.
		MaxBody: cfg.Storage.MaxUploadBytes*int64(cfg.Storage.MaxFiles) + 1<<20,
	})

	sched := cronjob.NewScheduler(ctx, log)
	if err := sched.Add(cronjob.Job{Name: "prune-rate-limits", Schedule: "0 */10 * * * *", Run: jobs.PruneLimiter(limiter)}); err != nil {
		return err
	}
	if local != nil {
		if err := sched.Add(cronjob.Job{
			Name:     "sweep-upload-temp",
			Schedule: cfg.Storage.SweepSchedule,
			Run:      jobs.SweepUploads(local, cfg.Storage.TempMaxAge, log),
		}); err != nil {
			return err
		}
	}
	sched.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("environment", cfg.App.Environment),
			zap.String("db", string(a.Dialect())),
			zap.String("storage", backend.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop(sctx)
	if err := m.Wait(sctx); err != nil {
		log.Warn("pending media purges abandoned", zap.Error(err))
	}
	return nil
}
