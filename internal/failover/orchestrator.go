// internal/failover/orchestrator.go
package failover

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/meridian/internal/config"
	"github.com/FairForge/meridian/internal/region"
	"github.com/FairForge/meridian/internal/routing"
)

// HealthEvaluator produces composite health for a region.
type HealthEvaluator interface {
	Evaluate(ctx context.Context, regionID string) (region.Health, []string)
}

// Orchestrator executes the traffic switch: redirect traffic, update the CDN
// origin, scale the target up, then verify the target is carrying load
// healthily. Collaborator failures are captured as step booleans, never as
// errors.
type Orchestrator struct {
	router routing.TrafficRouter
	cdn    routing.CDNRouter
	scaler routing.CapacityScaler
	health HealthEvaluator

	verifyInterval time.Duration
	verifyTimeout  time.Duration

	mu         sync.RWMutex
	thresholds config.ThresholdConfig

	logger *zap.Logger
}

// NewOrchestrator wires the orchestrator to its collaborators.
func NewOrchestrator(
	router routing.TrafficRouter,
	cdn routing.CDNRouter,
	scaler routing.CapacityScaler,
	health HealthEvaluator,
	cfg config.OrchestratorConfig,
	thresholds config.ThresholdConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		router:         router,
		cdn:            cdn,
		scaler:         scaler,
		health:         health,
		verifyInterval: cfg.VerifyInterval,
		verifyTimeout:  cfg.VerifyTimeout,
		thresholds:     thresholds,
		logger:         logger,
	}
}

// SetThresholds re-applies runtime-tunable verification thresholds.
func (o *Orchestrator) SetThresholds(t config.ThresholdConfig) {
	o.mu.Lock()
	o.thresholds = t
	o.mu.Unlock()
}

// Execute runs the switch from one region to another. The returned event
// always describes the attempt; the error is non-nil only when rollback
// itself failed. A step failure short-circuits the remaining steps and takes
// the rollback path, which reverses traffic and CDN routing only. Capacity
// added in step 3 is deliberately left in place: spare capacity is harmless
// mid-incident, a second scaling mutation is not.
func (o *Orchestrator) Execute(ctx context.Context, from, to, reason string) (region.FailoverEvent, error) {
	start := time.Now()
	event := region.FailoverEvent{
		ID:        uuid.New().String(),
		Timestamp: start.UTC(),
		From:      from,
		To:        to,
		Reason:    reason,
	}

	o.logger.Warn("failover started",
		zap.String("event_id", event.ID),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("reason", reason))

	success := o.step(event.ID, "switch traffic", func() bool { return o.router.Switch(ctx, from, to) }) &&
		o.step(event.ID, "update cdn origin", func() bool { return o.cdn.UpdateOrigin(ctx, from, to) }) &&
		o.step(event.ID, "scale up target", func() bool { return o.scaler.ScaleUp(ctx, to) }) &&
		o.step(event.ID, "verify target", func() bool { return o.verify(ctx, to) })

	if success {
		event.Success = true
		event.Duration = time.Since(start)
		o.logger.Info("failover complete",
			zap.String("event_id", event.ID),
			zap.Duration("duration", event.Duration))
		return event, nil
	}

	// Both rollback calls are idempotent, so reversing a step that never
	// ran is safe.
	event.RollbackPerformed = true
	trafficBack := o.step(event.ID, "rollback traffic", func() bool { return o.router.Switch(ctx, to, from) })
	cdnBack := o.step(event.ID, "rollback cdn origin", func() bool { return o.cdn.UpdateOrigin(ctx, to, from) })
	event.Duration = time.Since(start)

	if !trafficBack || !cdnBack {
		o.logger.Error("failover rollback failed",
			zap.String("event_id", event.ID),
			zap.Bool("traffic_restored", trafficBack),
			zap.Bool("cdn_restored", cdnBack))
		return event, ErrRollbackFailed
	}

	o.logger.Warn("failover rolled back",
		zap.String("event_id", event.ID),
		zap.Duration("duration", event.Duration))
	return event, nil
}

func (o *Orchestrator) step(eventID, name string, fn func() bool) bool {
	ok := fn()
	o.logger.Info("failover step",
		zap.String("event_id", eventID),
		zap.String("step", name),
		zap.Bool("ok", ok))
	return ok
}

// verify polls the target's health until it clears both thresholds or the
// verification window closes. The first check runs immediately.
func (o *Orchestrator) verify(ctx context.Context, regionID string) bool {
	o.mu.RLock()
	t := o.thresholds
	o.mu.RUnlock()

	deadline := time.NewTimer(o.verifyTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(o.verifyInterval)
	defer ticker.Stop()

	for {
		h, _ := o.health.Evaluate(ctx, regionID)
		if h.Healthy(t.HealthThreshold) && h.ResponseTime <= t.ResponseTimeThreshold {
			return true
		}
		o.logger.Info("target not ready yet",
			zap.String("region", regionID),
			zap.Float64("score", h.Score),
			zap.Duration("response_time", h.ResponseTime))

		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}
