package cronjob

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one named maintenance task.
type Job struct {
	Name     string
	Schedule string // cron expression with a leading seconds field
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
	ctx  context.Context
}

func NewScheduler(ctx context.Context, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log.Named("cron"),
		ctx:  ctx,
	}
}

// Add registers a job. A blank schedule disables it.
func (s *Scheduler) Add(j Job) error {
	if j.Schedule == "" {
		s.log.Info("job disabled", zap.String("job", j.Name))
		return nil
	}
	_, err := s.cron.AddFunc(j.Schedule, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", j.Name, err)
	}
	return nil
}

func (s *Scheduler) run(j Job) {
	if err := j.Run(s.ctx); err != nil {
		s.log.Warn("job failed", zap.String("job", j.Name), zap.Error(err))
		return
	}
	s.log.Debug("job completed", zap.String("job", j.Name))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
