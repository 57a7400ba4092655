// Package scheduler runs a task on an aligned interval until the context
// is canceled.
package scheduler

import (
	"context"
	"time"

	"choromap/internal/logger"
)

type AlignedScheduler struct {
	Interval       time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewAlignedScheduler(ctx context.Context, interval time.Duration) *AlignedScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &AlignedScheduler{
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks, firing task at every interval boundary. Ticks align to the
// wall clock so restarts keep the same cadence.
func (s *AlignedScheduler) Start(task func()) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("AlignedScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("AlignedScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("AlignedScheduler: started interval=%s run_immediately=%v at=%s",
		s.Interval, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		task()
	}

	for {
		now := s.nowFn().UTC()
		wakeAt := now.Truncate(s.Interval).Add(s.Interval)
		wait := wakeAt.Sub(now)
		uptime := now.Sub(startAt)

		logger.Debugf("AlignedScheduler: next run at=%s (in %s) uptime=%s",
			wakeAt.Format(time.RFC3339), wait.Truncate(time.Second), uptime.Truncate(time.Second))

		if wait <= 0 {
			task()
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("AlignedScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		task()
	}
}
