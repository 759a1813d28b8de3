// Package scheduler runs the periodic expiry jobs. Each job takes a
// short-lived distributed lock named after itself so concurrent service
// instances do not scan the same batch; the per-row version check in the
// order repository remains the correctness guard even when the lock expires
// mid-run.
package scheduler

import (
	"context"
	"errors"
	"time"

	"order-service/internal/model"
	"order-service/internal/service"
	"order-service/pkg/redislock"
	"order-service/prometheus"

	"go.uber.org/zap"
)

const (
	jobAcceptanceTimeout = "order-acceptance-timeout"
	jobPickupTimeout     = "order-pickup-timeout"
	jobVoidRetry         = "payment-void-retry"

	batchSize = 100
)

// Scheduler drives expired orders through the state machine
type Scheduler struct {
	svc      *service.OrderService
	locker   redislock.Locker
	interval time.Duration
	lockTTL  time.Duration
	log      *zap.Logger

	// overridable clock for tests
	now func() time.Time
}

// New creates a scheduler
func New(svc *service.OrderService, locker redislock.Locker, interval, lockTTL time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		svc:      svc,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		log:      log,
		now:      time.Now,
	}
}

// Run executes the jobs on every tick until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Expiry scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Expiry scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes each job a single time
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.runJob(ctx, jobAcceptanceTimeout, s.runAcceptanceTimeout)
	s.runJob(ctx, jobPickupTimeout, s.runPickupTimeout)
	s.runJob(ctx, jobVoidRetry, s.runVoidRetry)
}

// runJob takes the job's lock and executes it. A held lock skips the run; a
// lock acquisition failure aborts only this run.
func (s *Scheduler) runJob(ctx context.Context, name string, job func(ctx context.Context) error) {
	release, ok, err := s.locker.Acquire(ctx, name, s.lockTTL)
	if err != nil {
		s.log.Error("Failed to acquire scheduler lock", zap.String("job", name), zap.Error(err))
		prometheus.SchedulerRunCounter.WithLabelValues(name, "error").Inc()
		return
	}
	if !ok {
		prometheus.SchedulerRunCounter.WithLabelValues(name, "skipped").Inc()
		return
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.log.Warn("Failed to release scheduler lock", zap.String("job", name), zap.Error(err))
		}
	}()

	if err := job(ctx); err != nil {
		s.log.Error("Scheduler job failed", zap.String("job", name), zap.Error(err))
		prometheus.SchedulerRunCounter.WithLabelValues(name, "error").Inc()
		return
	}
	prometheus.SchedulerRunCounter.WithLabelValues(name, "ok").Inc()
}

// runAcceptanceTimeout expires pending orders whose acceptance deadline has
// passed: void the held funds, transition to EXPIRED, notify the customer.
// Each order is processed independently; one failure never stops the batch.
func (s *Scheduler) runAcceptanceTimeout(ctx context.Context) error {
	orders, err := s.svc.Orders().FindAcceptanceExpired(ctx, s.now().UTC(), batchSize)
	if err != nil {
		return err
	}
	for i := range orders {
		order := orders[i]
		if err := s.svc.ExpirePendingOrder(ctx, &order); err != nil {
			s.logOrderFailure(jobAcceptanceTimeout, order.ID, err)
			continue
		}
		prometheus.ExpiredOrderCounter.WithLabelValues(jobAcceptanceTimeout).Inc()
	}
	return nil
}

// runPickupTimeout expires ready orders whose pickup window has passed. The
// payment was captured on acceptance, so no money moves.
func (s *Scheduler) runPickupTimeout(ctx context.Context) error {
	orders, err := s.svc.Orders().FindPickupExpired(ctx, s.now().UTC(), batchSize)
	if err != nil {
		return err
	}
	for i := range orders {
		order := orders[i]
		if err := s.svc.ExpirePickupOrder(ctx, &order); err != nil {
			s.logOrderFailure(jobPickupTimeout, order.ID, err)
			continue
		}
		prometheus.ExpiredOrderCounter.WithLabelValues(jobPickupTimeout).Inc()
	}
	return nil
}

// runVoidRetry retries voids that failed after a terminal transition
func (s *Scheduler) runVoidRetry(ctx context.Context) error {
	payments, err := s.svc.Payments().FindVoidable(ctx, batchSize)
	if err != nil {
		return err
	}
	for i := range payments {
		payment := payments[i]
		if err := s.svc.RetryVoid(ctx, &payment); err != nil {
			s.log.Warn("Void retry failed",
				zap.Uint("payment_id", payment.ID),
				zap.Uint("order_id", payment.OrderID),
				zap.Error(err))
		}
	}
	return nil
}

// logOrderFailure downgrades lost version races to debug: a user-initiated
// transition won, which is the intended resolution of that race
func (s *Scheduler) logOrderFailure(job string, orderID uint, err error) {
	if errors.Is(err, model.ErrConcurrentModification) || errors.Is(err, model.ErrInvalidStateTransition) {
		s.log.Debug("Order no longer eligible for expiry",
			zap.String("job", job), zap.Uint("order_id", orderID), zap.Error(err))
		return
	}
	s.log.Error("Failed to expire order",
		zap.String("job", job), zap.Uint("order_id", orderID), zap.Error(err))
}
