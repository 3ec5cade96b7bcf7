package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Scheduler runs SyncAll on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
}

// StartScheduler syncs every source immediately and then every interval.
// Runs never overlap.
func StartScheduler(syncer *Syncer, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", interval)
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	_, err := s.Every(interval).Do(func() {
		if _, err := syncer.SyncAll(ctx); err != nil {
			syncer.logger.Error("scheduled sync failed", zap.Error(err))
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule sync: %w", err)
	}
	s.StartAsync()
	return &Scheduler{scheduler: s, cancel: cancel}, nil
}

// Stop cancels any running sync and stops the schedule.
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}
