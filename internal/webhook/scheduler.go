package webhook

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/models"

	"go.uber.org/zap"
)

// Jobs is what the scheduler drives.
type Jobs interface {
	RunDailySummary(ctx context.Context, userIDs []string) ([]models.JobResult, error)
	RunImminentEvents(ctx context.Context, userIDs []string) ([]models.JobResult, error)
}

// Scheduler runs the webhook jobs on fixed intervals until stopped.
type Scheduler struct {
	jobs             Jobs
	dailyInterval    time.Duration
	imminentInterval time.Duration
	logger           *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(jobs Jobs, dailyInterval, imminentInterval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:             jobs,
		dailyInterval:    dailyInterval,
		imminentInterval: imminentInterval,
		logger:           logger,
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (s *Scheduler) safeGo(name string, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("recovered from panic in scheduler goroutine",
					zap.String("goroutine", name),
					zap.String("panic", fmt.Sprintf("%v", r)),
					zap.String("stack", string(debug.Stack())))
			}
		}()
		fn()
	}()
}

// Start launches both job loops. The daily job also runs once immediately;
// its once-per-day guard makes that safe after restarts.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil {
		s.Stop()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.safeGo("daily-summary", func() {
		s.loop(ctx, "daily-summary", s.dailyInterval, true, s.jobs.RunDailySummary)
	})
	s.safeGo("imminent-events", func() {
		s.loop(ctx, "imminent-events", s.imminentInterval, false, s.jobs.RunImminentEvents)
	})
	s.logger.Info("webhook scheduler started",
		zap.Duration("daily_interval", s.dailyInterval),
		zap.Duration("imminent_interval", s.imminentInterval))
}

// Stop cancels the loops and waits for a running job to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
	s.logger.Info("webhook scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, name string, every time.Duration, runNow bool,
	run func(context.Context, []string) ([]models.JobResult, error)) {
	if runNow {
		s.runOnce(ctx, name, run)
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, name, run)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, name string, run func(context.Context, []string) ([]models.JobResult, error)) {
	start := time.Now()
	results, err := run(ctx, nil)
	if err != nil {
		s.logger.Error("webhook job failed", zap.String("job", name), zap.Error(err))
		return
	}
	sent := 0
	for _, r := range results {
		if r.Status == models.JobSent {
			sent++
		}
	}
	s.logger.Debug("webhook job finished",
		zap.String("job", name),
		zap.Int("users", len(results)),
		zap.Int("sent", sent),
		zap.Duration("elapsed", time.Since(start)))
}
