package scheduler

import (
	"context"
	"time"

	"resourcehive/internal/allocation"
	"resourcehive/internal/metrics"

	"go.uber.org/zap"
)

var overdueSweepHours = map[int]bool{8: true, 12: true, 16: true, 20: true}

const reminderIntervalHours = 6

// Scheduler is the single-instance periodic driver. It enters the allocation
// engine through the same service operations the request path uses. Run it in
// exactly one process, gated by SCHEDULER_ENABLED.
type Scheduler struct {
	borrows      *allocation.BorrowRequestService
	reservations *allocation.ReservationService
	metrics      *metrics.Metrics
	location     *time.Location
	log          *zap.Logger

	lastCycle string
}

func New(
	borrows *allocation.BorrowRequestService,
	reservations *allocation.ReservationService,
	m *metrics.Metrics,
	location *time.Location,
	log *zap.Logger,
) *Scheduler {
	return &Scheduler{
		borrows:      borrows,
		reservations: reservations,
		metrics:      m,
		location:     location,
		log:          log,
	}
}

// Run blocks until the context is cancelled, firing jobs at the top of each
// hour. A job error aborts the current cycle; the next tick retries.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", zap.String("timezone", s.location.String()))

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case now := <-ticker.C:
			s.tick(ctx, now.In(s.location))
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if now.Minute() != 0 {
		return
	}

	// One cycle per wall-clock hour, even if ticks drift within the minute.
	cycleKey := now.Format("2006-01-02T15")
	if cycleKey == s.lastCycle {
		return
	}
	s.lastCycle = cycleKey

	if err := s.runCycle(ctx, now); err != nil {
		s.metrics.SchedulerErrors.Inc()
		s.log.Error("scheduler cycle aborted", zap.Error(err))
		return
	}

	s.metrics.SchedulerCycles.Inc()
}

func (s *Scheduler) runCycle(ctx context.Context, now time.Time) error {
	activation, err := s.reservations.ActivateDue(now)
	if err != nil {
		return err
	}
	if activation.ItemsActivated > 0 {
		s.log.Info("reservations activated", zap.Int("items", activation.ItemsActivated))
	}

	expiry, err := s.reservations.ExpireClosed(now)
	if err != nil {
		return err
	}
	if expiry.ItemsExpired > 0 {
		s.log.Info("reservations expired", zap.Int("items", expiry.ItemsExpired))
	}

	if overdueSweepHours[now.Hour()] {
		sweep, err := s.borrows.SweepOverdue(ctx, now)
		if err != nil {
			return err
		}
		s.log.Info("overdue sweep finished",
			zap.Int("items_marked", sweep.ItemsMarked),
			zap.Int("users_notified", sweep.UsersNotified),
			zap.Int("send_failures", sweep.SendFailures))
	}

	if now.Hour()%reminderIntervalHours == 0 {
		reminders, err := s.borrows.SendDueReminders(ctx, now)
		if err != nil {
			return err
		}
		s.log.Info("reminder pass finished",
			zap.Int("sent", reminders.Sent),
			zap.Int("skipped", reminders.Skipped),
			zap.Int("failures", reminders.Failures))
	}

	return nil
}
