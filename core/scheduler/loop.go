// Package scheduler runs periodic jobs as supervised services.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// JobFunc is one tick of a periodic job.
type JobFunc func(ctx context.Context) error

// Loop runs a job on a fixed interval until its context is cancelled.
// It implements suture.Service.
type Loop struct {
	name     string
	interval time.Duration
	job      JobFunc
	logger   *zap.Logger
}

// NewLoop creates a periodic loop. A non-positive interval defaults to one minute.
func NewLoop(name string, interval time.Duration, job JobFunc, logger *zap.Logger) *Loop {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger.With(zap.String("job", name)),
	}
}

// Serve ticks until ctx is done. A failing tick is logged and retried on the next tick.
func (l *Loop) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("Scheduled job started", zap.Duration("interval", l.interval))
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Scheduled job stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := l.RunOnce(ctx); err != nil {
				l.logger.Warn("Scheduled job tick failed", zap.Error(err))
			}
		}
	}
}

// RunOnce executes a single tick, converting a panic into an error.
func (l *Loop) RunOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", l.name, r)
		}
	}()
	return l.job(ctx)
}

// String implements fmt.Stringer for supervisor logs.
func (l *Loop) String() string {
	return l.name
}
