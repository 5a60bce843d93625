package worker

import (
	"context"
	"time"

	"github.com/spasuite/booking-api/pkg/logger"
	"github.com/spasuite/booking-api/pkg/metrics"
)

// SchedulerConfig pins each recurring task to its local wall-clock slot
type SchedulerConfig struct {
	SweepHour    int
	ReminderHour int
	AlertWeekday time.Weekday
}

// SweepService expires stale packages and vouchers
type SweepService interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// DispatchService drives the scheduled notification fan-outs
type DispatchService interface {
	DispatchReminders(ctx context.Context, today time.Time) (int, error)
	DispatchBalanceAlerts(ctx context.Context) (int, error)
	DispatchDailyReport(ctx context.Context, day time.Time) error
}

// Scheduler fires the recurring jobs: the expiry sweep and daily report
// early in the morning, reminders mid-morning, and the balance alert batch
// once a week. Each task runs at most once per day, tracked in memory; a
// restart inside the same hour re-runs the task, which every target
// tolerates (the sweep is idempotent, alerts dedup against the message log).
type Scheduler struct {
	sweeper  SweepService
	dispatch DispatchService
	config   SchedulerConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics

	lastSweep    time.Time
	lastReminder time.Time
	lastAlert    time.Time
	lastReport   time.Time
}

func NewScheduler(
	sweeper SweepService,
	dispatch DispatchService,
	config SchedulerConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		dispatch: dispatch,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		"sweep_hour", s.config.SweepHour,
		"reminder_hour", s.config.ReminderHour,
		"alert_weekday", s.config.AlertWeekday.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if due(now, s.config.SweepHour, s.lastSweep) {
		s.lastSweep = now
		s.runSweep(ctx)
		s.runDailyReport(ctx, now)
	}
	if due(now, s.config.ReminderHour, s.lastReminder) {
		s.lastReminder = now
		s.runReminders(ctx, now)
	}
	if now.Weekday() == s.config.AlertWeekday && due(now, s.config.ReminderHour, s.lastAlert) {
		s.lastAlert = now
		s.runAlerts(ctx)
	}
}

// due reports whether the task's hour has arrived and it has not already
// run today
func due(now time.Time, hour int, last time.Time) bool {
	if now.Hour() < hour {
		return false
	}
	return last.IsZero() || last.YearDay() != now.YearDay() || last.Year() != now.Year()
}

func (s *Scheduler) runSweep(ctx context.Context) {
	expired, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		s.logger.Error(err, "expiry sweep failed")
		return
	}
	s.metrics.SweepTransitions.Add(float64(expired))
	s.logger.Info("expiry sweep complete", "expired", expired)
}

func (s *Scheduler) runDailyReport(ctx context.Context, now time.Time) {
	// Summarizes the previous business day
	if err := s.dispatch.DispatchDailyReport(ctx, now.AddDate(0, 0, -1)); err != nil {
		s.logger.Error(err, "daily report dispatch failed")
	}
}

func (s *Scheduler) runReminders(ctx context.Context, now time.Time) {
	if _, err := s.dispatch.DispatchReminders(ctx, now); err != nil {
		s.logger.Error(err, "reminder dispatch failed")
	}
}

func (s *Scheduler) runAlerts(ctx context.Context) {
	if _, err := s.dispatch.DispatchBalanceAlerts(ctx); err != nil {
		s.logger.Error(err, "balance alert dispatch failed")
	}
}
