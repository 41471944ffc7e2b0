// Package scheduler runs the periodic background jobs of the service.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger.Named("scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers fn under a cron spec such as "@every 1m". A panicking job
// is logged and does not stop the scheduler.
func (s *Scheduler) Add(spec, name string, fn func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("job panicked", zap.String("job", name), zap.Any("panic", r))
			}
		}()
		fn(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Run starts the jobs and blocks until ctx is done, then waits for running
// jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}
