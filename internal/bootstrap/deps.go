package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/p4solution/portfolio-backend/config"
	"github.com/p4solution/portfolio-backend/internal/cache"
	"github.com/p4solution/portfolio-backend/internal/contact"
	"github.com/p4solution/portfolio-backend/internal/storage/blob"
)

// OpenStorage builds the media backend named by STORAGE_BACKEND. The local
// backend is also returned on its own so the router can serve it and the
// sweeper can clean it; it is nil for remote backends.
func OpenStorage(ctx context.Context, cfg *config.Config) (blob.Backend, *blob.Local, error) {
	sc := cfg.Storage
	switch sc.Backend {
	case "s3":
		b, err := blob.NewS3(ctx, blob.S3Options{
			Bucket:          sc.S3Bucket,
			Region:          sc.S3Region,
			Endpoint:        sc.S3Endpoint,
			PublicURL:       sc.S3PublicURL,
			ForcePathStyle:  sc.S3ForcePathStyle,
			AccessKeyID:     sc.AccessKeyID,
			SecretAccessKey: sc.SecretAccessKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("s3 storage: %w", err)
		}
		return b, nil, nil
	default:
		base := strings.TrimRight(sc.PublicBaseURL, "/")
		if base == "" {
			base = "http://localhost:" + cfg.Server.Port
		}
		l, err := blob.NewLocal(sc.UploadDir, base)
		if err != nil {
			return nil, nil, fmt.Errorf("local storage: %w", err)
		}
		return l, l, nil
	}
}

// OpenCache connects Redis when REDIS_URL is set. An unreachable Redis is not
// fatal; reads fall through to the database.
func OpenCache(ctx context.Context, cfg config.CacheConfig, log *zap.Logger) cache.Cache {
	if cfg.RedisURL == "" {
		return cache.Nop{}
	}
	c, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.TTL)
	if err != nil {
		log.Warn("redis unavailable, caching disabled", zap.Error(err))
		return cache.Nop{}
	}
	return c
}

func NewMailer(cfg config.MailConfig) contact.Sender {
	return contact.NewSMTPSender(contact.SMTPOptions{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
}

// JWTSecret returns the configured secret. Outside production a missing secret
// is replaced by a random one, so tokens do not survive a restart.
func JWTSecret(cfg *config.Config, log *zap.Logger) (string, error) {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret, nil
	}
	if cfg.IsProduction() {
		return "", fmt.Errorf("JWT_SECRET is required in production")
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	log.Warn("JWT_SECRET not set, using an ephemeral secret")
	return hex.EncodeToString(b), nil
}
