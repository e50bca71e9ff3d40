package accrual

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/logger"
)

type runner interface {
	Run(ctx context.Context, tenantID uuid.UUID) (Result, error)
}

// Scheduler runs accrual for configured tenants on every tick
// Accrual is idempotent within a period, so frequent ticks are safe
type Scheduler struct {
	interval time.Duration
	tenants  []uuid.UUID
	runner   runner
	logger   logger.Logger
}

func NewScheduler(interval time.Duration, tenants []uuid.UUID, runner runner, l logger.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		tenants:  tenants,
		runner:   runner,
		logger:   l,
	}
}

// Start runs accrual immediately and then every interval till ctx is done
// Returned channel is closed when scheduler stopped
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting accrual scheduler", "interval", s.interval, "tenants", len(s.tenants))

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			s.runAll(ctx)

			select {
			case <-ctx.Done():
				s.logger.Debug("Accrual scheduler stopped by context")
				return
			case <-ticker.C:
			}
		}
	}()

	return idleStopped
}

func (s *Scheduler) runAll(ctx context.Context) {
	for _, tenantID := range s.tenants {
		if ctx.Err() != nil {
			return
		}

		if _, err := s.runner.Run(ctx, tenantID); err != nil {
			s.logger.Error("Scheduled accrual failed", "tenant_id", tenantID, "error", err)
		}
	}
}
