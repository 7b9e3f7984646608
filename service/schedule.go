package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const scheduledTask = "scheduled task"

// OrphanSweepTask removes uploads that no message references once they are
// older than maxAge.
func OrphanSweepTask(ctx context.Context, images *ImageService, maxAge time.Duration) (int, error) {
	logger.Infof("[%s] Start scheduled task OrphanSweepTask", scheduledTask)
	startTime := time.Now()

	removed, err := images.SweepOrphans(ctx, maxAge)
	if err != nil {
		logger.Warnf("[%s] orphan sweep error, %s", scheduledTask, err)
		return 0, fmt.Errorf("failed to sweep orphan uploads: %w", err)
	}

	duration := time.Since(startTime)
	logger.Infof("[%s] Finished scheduled task OrphanSweepTask, removed %d uploads in %v", scheduledTask, removed, duration)
	return removed, nil
}

// NewScheduler registers the periodic jobs. The caller starts and stops it.
func NewScheduler(spec string, images *ImageService, maxAge time.Duration) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		_, _ = OrphanSweepTask(context.Background(), images, maxAge)
	}); err != nil {
		return nil, fmt.Errorf("invalid orphan sweep schedule %q: %w", spec, err)
	}
	return c, nil
}
