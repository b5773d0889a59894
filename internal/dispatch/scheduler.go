// Package dispatch drives the time-based side of the engine: digest runs at
// the daily and weekly slots and the hourly deadline and workload sweeps.
package dispatch

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/batterybuildsog1/Project-manager/internal/detectors"
	"github.com/batterybuildsog1/Project-manager/internal/schedule"
	"github.com/batterybuildsog1/Project-manager/internal/services"
	"github.com/batterybuildsog1/Project-manager/pkg/logger"
)

const defaultDeadlineSpec = "@hourly"

// Scheduler registers the engine's recurring jobs with a cron runner. Any nil
// dependency skips the corresponding job.
type Scheduler struct {
	digest   *services.DigestService
	deadline *detectors.DeadlineDetector
	wip      *detectors.WIPDetector
	plan     schedule.Plan
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger

	deadlineSchedule string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock handed to jobs when they fire.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDeadlineSchedule overrides the cron specification for the deadline
// sweep.
func WithDeadlineSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.deadlineSchedule = spec
		}
	}
}

// NewScheduler constructs a Scheduler with the engine's default timetable.
func NewScheduler(digest *services.DigestService, deadline *detectors.DeadlineDetector, wip *detectors.WIPDetector, plan schedule.Plan, opts ...Option) *Scheduler {
	s := &Scheduler{
		digest:           digest,
		deadline:         deadline,
		wip:              wip,
		plan:             plan,
		now:              time.Now,
		log:              logger.WithModule("dispatch"),
		deadlineSchedule: defaultDeadlineSpec,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return s
}

// Start registers every job and launches the runner.
func (s *Scheduler) Start() error {
	if s.digest != nil {
		for _, spec := range s.plan.BatchCronSpecs() {
			if _, err := s.cron.AddFunc(spec, func() {
				if _, err := s.digest.RunBatch(context.Background(), s.now()); err != nil {
					s.log.Warn("batch digest run failed", zap.Error(err))
				}
			}); err != nil {
				return err
			}
		}

		if _, err := s.cron.AddFunc(s.plan.WeeklyCronSpec(), func() {
			if _, err := s.digest.RunWeekly(context.Background(), s.now()); err != nil {
				s.log.Warn("weekly report run failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.deadline != nil {
		if _, err := s.cron.AddFunc(s.deadlineSchedule, func() {
			if _, err := s.deadline.Scan(context.Background()); err != nil {
				s.log.Warn("deadline sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.wip != nil {
		if _, err := s.cron.AddFunc(s.deadlineSchedule, func() {
			if _, err := s.wip.Check(context.Background()); err != nil {
				s.log.Warn("workload sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the runner, waiting for in-flight jobs to finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce fires every configured job immediately. Used during shutdown so a
// digest slot missed by seconds is not lost, and by tests.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.digest != nil {
		if _, err := s.digest.RunBatch(ctx, s.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
		if _, err := s.digest.RunWeekly(ctx, s.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.deadline != nil {
		if _, err := s.deadline.Scan(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.wip != nil {
		if _, err := s.wip.Check(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
