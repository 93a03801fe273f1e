package flush

import (
	"context"
	"fmt"
	"time"

	"lsadf-backend/core/metrics"
	"lsadf-backend/core/resource"
	"lsadf-backend/core/scheduler"

	"go.uber.org/zap"
)

// Report summarizes one scan.
type Report struct {
	Flushed int      `json:"flushed"`
	Clean   int      `json:"clean"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Scheduler drains dirty cache entries of every registered resource kind.
type Scheduler struct {
	flushers []resource.Flusher
	logger   *zap.Logger
}

// NewScheduler creates a scheduler over the given kinds, flushed in the given order.
func NewScheduler(flushers []resource.Flusher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{flushers: flushers, logger: logger.With(zap.String("component", "flush"))}
}

// Scan flushes every dirty entry once. A failing key is logged and left dirty for the next
// scan; it never stops the others.
func (s *Scheduler) Scan(ctx context.Context) Report {
	start := time.Now()
	defer func() {
		metrics.FlushScanDuration.Observe(time.Since(start).Seconds())
	}()

	var report Report
	for _, f := range s.flushers {
		if ctx.Err() != nil {
			break
		}
		ids, err := f.DirtyKeys(ctx)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", f.Kind(), err))
			s.logger.Warn("Listing dirty entries failed", zap.String("kind", f.Kind()), zap.Error(err))
			continue
		}
		for _, id := range ids {
			flushed, err := f.Flush(ctx, id)
			switch {
			case err != nil:
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s %s: %v", f.Kind(), id, err))
				s.logger.Warn("Flush failed, retrying next scan",
					zap.String("kind", f.Kind()),
					zap.String("game_save_id", id.String()),
					zap.Error(err),
				)
			case flushed:
				report.Flushed++
			default:
				report.Clean++
			}
		}
	}

	if report.Flushed > 0 || report.Failed > 0 {
		s.logger.Info("Flush scan finished",
			zap.Int("flushed", report.Flushed),
			zap.Int("failed", report.Failed),
			zap.Duration("took", time.Since(start)),
		)
	}
	return report
}

// Job adapts Scan to a scheduler loop. It fails when any key failed so the tick is logged.
func (s *Scheduler) Job() scheduler.JobFunc {
	return func(ctx context.Context) error {
		report := s.Scan(ctx)
		if report.Failed > 0 {
			return fmt.Errorf("%d flush(es) failed", report.Failed)
		}
		return nil
	}
}

// Loop returns the supervised periodic flush service.
func (s *Scheduler) Loop(cfg Config) *scheduler.Loop {
	return scheduler.NewLoop("cache-flush", cfg.Interval, s.Job(), s.logger)
}
