package webhook

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingJobs struct {
	daily, imminent atomic.Int32
	panicOnDaily    bool
}

func (c *countingJobs) RunDailySummary(context.Context, []string) ([]models.JobResult, error) {
	c.daily.Add(1)
	if c.panicOnDaily {
		panic("boom")
	}
	return []models.JobResult{{UserID: "alice", Status: models.JobSent}}, nil
}

func (c *countingJobs) RunImminentEvents(context.Context, []string) ([]models.JobResult, error) {
	c.imminent.Add(1)
	return nil, nil
}

func TestScheduler_RunsJobsUntilStopped(t *testing.T) {
	jobs := &countingJobs{}
	s := NewScheduler(jobs, time.Hour, 10*time.Millisecond, zap.NewNop())
	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		return jobs.daily.Load() == 1 && jobs.imminent.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	stopped := jobs.imminent.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, jobs.imminent.Load())
}

func TestScheduler_RecoversFromPanics(t *testing.T) {
	jobs := &countingJobs{panicOnDaily: true}
	s := NewScheduler(jobs, time.Hour, time.Hour, zap.NewNop())
	s.Start(context.Background())

	assert.Eventually(t, func() bool { return jobs.daily.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.NotPanics(t, s.Stop)
}
