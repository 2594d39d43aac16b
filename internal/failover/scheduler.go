// internal/failover/scheduler.go
package failover

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/meridian/internal/config"
)

// Scheduler drives the two monitoring cadences: frequent health refreshes
// and coarser failover evaluations. Stop is honored between ticks only; an
// orchestration that has started always runs to completion.
type Scheduler struct {
	manager        *Manager
	healthInterval time.Duration
	evalInterval   time.Duration
	backoff        time.Duration
	logger         *zap.Logger
}

// NewScheduler creates a scheduler over the manager.
func NewScheduler(manager *Manager, cfg config.MonitorConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		manager:        manager,
		healthInterval: cfg.HealthCheckInterval,
		evalInterval:   cfg.EvaluationInterval,
		backoff:        cfg.TickBackoff,
		logger:         logger,
	}
}

// Run drives the tick loop until the context is cancelled. Tick errors are
// logged and the loop continues; a failed evaluation backs off before the
// next tick is considered.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("monitoring scheduler started",
		zap.Duration("health_check_interval", s.healthInterval),
		zap.Duration("evaluation_interval", s.evalInterval))

	// Prime region health so the first evaluation has data to act on.
	s.manager.RefreshHealth(ctx)

	healthTicker := time.NewTicker(s.healthInterval)
	defer healthTicker.Stop()
	evalTicker := time.NewTicker(s.evalInterval)
	defer evalTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("monitoring scheduler stopped")
			return

		case <-healthTicker.C:
			s.manager.RefreshHealth(ctx)

		case <-evalTicker.C:
			// Evaluate on fresh data, not on counters up to one
			// health interval old.
			s.manager.RefreshHealth(ctx)
			err := s.manager.EvaluateOnce(ctx)
			if err == nil ||
				errors.Is(err, ErrFailoverInProgress) ||
				errors.Is(err, ErrNoHealthyTarget) ||
				errors.Is(err, ErrSuspended) {
				continue
			}
			s.logger.Error("evaluation tick failed", zap.Error(err))
			if !s.sleep(ctx, s.backoff) {
				s.logger.Info("monitoring scheduler stopped")
				return
			}
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
