package cronjob

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler(context.Background(), zap.NewNop())

	var runs atomic.Int32
	require.NoError(t, s.Add(Job{Name: "tick", Schedule: "* * * * * *", Run: func(context.Context) error {
		runs.Add(1)
		return errors.New("failures are logged, not fatal")
	}}))
	require.NoError(t, s.Add(Job{Name: "off", Run: func(context.Context) error {
		t.Error("disabled job ran")
		return nil
	}}))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	s := NewScheduler(context.Background(), zap.NewNop())
	err := s.Add(Job{Name: "bad", Schedule: "every day", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}
