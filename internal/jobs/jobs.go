// Package jobs holds the periodic housekeeping tasks run by the API process.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TempSweeper is satisfied by blob.Local.
type TempSweeper interface {
	SweepTemp(maxAge time.Duration) (int, error)
}

// SweepUploads removes partial upload files left behind by interrupted writes.
func SweepUploads(s TempSweeper, maxAge time.Duration, log *zap.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.SweepTemp(maxAge)
		if n > 0 {
			log.Info("swept stale upload temp files", zap.Int("removed", n))
		}
		return err
	}
}

// Pruner is satisfied by middleware.RateLimiter.
type Pruner interface {
	Prune() int
}

// PruneLimiter drops idle per-client rate limit state.
func PruneLimiter(p Pruner) func(context.Context) error {
	return func(context.Context) error {
		p.Prune()
		return nil
	}
}
