// internal/failover/manager.go
package failover

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/meridian/internal/alerting"
	"github.com/FairForge/meridian/internal/cascade"
	"github.com/FairForge/meridian/internal/config"
	"github.com/FairForge/meridian/internal/events"
	"github.com/FairForge/meridian/internal/metrics"
	"github.com/FairForge/meridian/internal/probe"
	"github.com/FairForge/meridian/internal/region"
)

// Executor runs one traffic switch attempt.
type Executor interface {
	Execute(ctx context.Context, from, to, reason string) (region.FailoverEvent, error)
}

// cascadeService maps probe subsystems to the fleet service names used in
// the dependency graph.
var cascadeService = map[string]string{
	probe.SubsystemLoadBalancer: "elbv2",
	probe.SubsystemCompute:      "ec2",
	probe.SubsystemDatabase:     "rds",
	probe.SubsystemContainers:   "ecs",
}

type regionState struct {
	info                region.Info
	status              region.FailoverStatus
	health              region.Health
	consecutiveFailures int
	failedSubsystems    []string
}

// RegionStatus is the externally visible state of one region.
type RegionStatus struct {
	ID                  string                `json:"id"`
	Role                region.Role           `json:"role"`
	Status              region.FailoverStatus `json:"status"`
	Health              region.Health         `json:"health"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	FailedSubsystems    []string              `json:"failed_subsystems,omitempty"`
}

// Status is a consistent snapshot of the whole controller.
type Status struct {
	ActiveRegion       string                 `json:"active_region"`
	FailoverInProgress bool                   `json:"failover_in_progress"`
	Suspended          bool                   `json:"suspended"`
	Regions            []RegionStatus         `json:"regions"`
	RecentEvents       []region.FailoverEvent `json:"recent_events"`
}

// ManagerDeps are the collaborators a Manager is wired to.
type ManagerDeps struct {
	Health   HealthEvaluator
	Executor Executor
	Assessor *cascade.Assessor
	Alerts   *alerting.Manager
	Sink     events.Sink
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Manager owns all mutable failover state: the region map, the active-region
// pointer, the in-progress flag and the event ring, all behind one mutex.
// Health refresh and decision evaluation read and commit through that lock,
// so no caller ever sees a half-updated pair of region statuses.
type Manager struct {
	mu         sync.Mutex
	regions    map[string]*regionState
	order      []string
	active     string
	inProgress bool
	suspended  bool
	thresholds config.ThresholdConfig
	events     *region.EventRing

	health         HealthEvaluator
	executor       Executor
	assessor       *cascade.Assessor
	alerts         *alerting.Manager
	sink           events.Sink
	metrics        *metrics.Metrics
	logger         *zap.Logger
	refreshWorkers int
}

// NewManager builds the controller from configuration. The configured
// primary starts as the active region, everything else as standby.
func NewManager(cfg *config.Config, deps ManagerDeps) *Manager {
	m := &Manager{
		regions:        make(map[string]*regionState, len(cfg.Regions)),
		order:          make([]string, 0, len(cfg.Regions)),
		thresholds:     cfg.Thresholds,
		events:         region.NewEventRing(cfg.Events.MaxEvents),
		health:         deps.Health,
		executor:       deps.Executor,
		assessor:       deps.Assessor,
		alerts:         deps.Alerts,
		sink:           deps.Sink,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		refreshWorkers: cfg.Monitor.ProbeWorkers,
	}
	if m.refreshWorkers < 1 {
		m.refreshWorkers = 1
	}

	for _, rc := range cfg.Regions {
		role := region.Role(rc.Role)
		if role == "" {
			role = region.RoleStandby
		}
		status := region.StatusStandby
		if role == region.RolePrimary {
			status = region.StatusActive
			m.active = rc.ID
		}
		m.regions[rc.ID] = &regionState{
			info:   region.Info{ID: rc.ID, Role: role},
			status: status,
		}
		m.order = append(m.order, rc.ID)
	}
	return m
}

// RefreshHealth re-evaluates every region's health with bounded parallelism
// and updates counters under the shared lock. A healthy check resets the
// consecutive-failure counter; an unhealthy one increments it.
func (m *Manager) RefreshHealth(ctx context.Context) {
	m.mu.Lock()
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()

	sem := make(chan struct{}, m.refreshWorkers)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			h, failed := m.health.Evaluate(ctx, id)
			m.metrics.HealthCheckDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
			m.commitHealth(id, h, failed)
		}(id)
	}
	wg.Wait()
}

func (m *Manager) commitHealth(id string, h region.Health, failed []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.regions[id]
	if !ok {
		return
	}
	st.health = h
	st.failedSubsystems = failed
	if h.Healthy(m.thresholds.HealthThreshold) {
		st.consecutiveFailures = 0
	} else {
		st.consecutiveFailures++
	}

	m.metrics.RegionHealthScore.WithLabelValues(id).Set(h.Score)
	m.metrics.ConsecutiveFailures.WithLabelValues(id).Set(float64(st.consecutiveFailures))
	m.metrics.ObserveRegionStatus(id, string(st.status))

	m.logger.Debug("region health updated",
		zap.String("region", id),
		zap.Float64("score", h.Score),
		zap.Int("consecutive_failures", st.consecutiveFailures),
		zap.Strings("failed_subsystems", failed))
}

// EvaluateOnce runs one decision-engine pass: assess cascade risk, check the
// active region against the failover triggers, pick a target and run the
// orchestrator synchronously. Returns ErrFailoverInProgress when another
// orchestration is mid-flight (the trigger is skipped, not queued) and
// ErrNoHealthyTarget when a trigger fires with no eligible target.
func (m *Manager) EvaluateOnce(ctx context.Context) error {
	m.assessCascadeRisk()

	m.mu.Lock()
	if m.suspended {
		m.mu.Unlock()
		m.logger.Debug("evaluation skipped, automatic failover suspended")
		return ErrSuspended
	}
	if m.inProgress {
		m.mu.Unlock()
		m.metrics.EvaluationsSkipped.Inc()
		m.logger.Info("evaluation skipped, failover in progress")
		return ErrFailoverInProgress
	}

	active, ok := m.regions[m.active]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("evaluate: active region %q: %w", m.active, ErrUnknownRegion)
	}

	reason := triggerReason(active.health, active.consecutiveFailures, m.thresholds)
	if reason == "" {
		m.alerts.Resolve(alerting.KeyNoHealthyTarget)
		m.mu.Unlock()
		return nil
	}

	candidates := make([]Candidate, 0, len(m.order))
	for _, id := range m.order {
		st := m.regions[id]
		candidates = append(candidates, Candidate{ID: id, Status: st.status, Health: st.health})
	}
	target, found := selectTarget(candidates, m.active, m.thresholds.HealthThreshold)
	if !found {
		from := m.active
		m.mu.Unlock()
		m.alerts.Fire(alerting.KeyNoHealthyTarget, alerting.SeverityCritical, from,
			fmt.Sprintf("failover needed (%s) but no region is eligible to take over", reason),
			[]string{"Investigate standby region health", "Consider manual intervention"})
		return ErrNoHealthyTarget
	}
	m.alerts.Resolve(alerting.KeyNoHealthyTarget)

	m.inProgress = true
	active.status = region.StatusFailingOver
	from := m.active
	m.mu.Unlock()

	return m.failOver(ctx, from, target, reason)
}

// failOver runs the orchestrator outside the lock and commits the outcome
// under it.
func (m *Manager) failOver(ctx context.Context, from, to, reason string) error {
	// A caller going away, whether a dropped admin request or a stopping
	// scheduler, must not abort a switch that has started moving traffic.
	ctx = context.WithoutCancel(ctx)

	event, err := m.executor.Execute(ctx, from, to, reason)

	m.mu.Lock()
	m.inProgress = false
	switch {
	case event.Success:
		m.regions[to].status = region.StatusActive
		m.regions[from].status = region.StatusFailed
		m.active = to
		m.metrics.FailoverAttempts.WithLabelValues(metrics.ResultSuccess).Inc()
		m.logger.Info("active region switched",
			zap.String("from", from),
			zap.String("to", to))

	case err == nil:
		// Rolled back cleanly, the source keeps traffic.
		m.regions[from].status = region.StatusActive
		m.metrics.FailoverAttempts.WithLabelValues(metrics.ResultRolledBack).Inc()

	default:
		m.regions[from].status = region.StatusFailed
		m.regions[to].status = region.StatusFailed
		m.active = ""
		m.suspended = true
		m.metrics.FailoverAttempts.WithLabelValues(metrics.ResultRollbackFailed).Inc()
		m.alerts.Fire(alerting.KeyRollbackFailed, alerting.SeverityPage, from,
			fmt.Sprintf("rollback failed during failover %s to %s, both regions marked failed", from, to),
			[]string{"Page the on-call operator", "Inspect routing state manually", "Reset the controller once resolved"})
	}
	for id, st := range m.regions {
		m.metrics.ObserveRegionStatus(id, string(st.status))
	}
	m.events.Append(event)
	m.mu.Unlock()

	m.metrics.FailoverDuration.Observe(event.Duration.Seconds())
	m.sink.Record(ctx, event)

	if err != nil {
		return fmt.Errorf("failover %s to %s: %w", from, to, err)
	}
	return nil
}

// assessCascadeRisk scores every known subsystem service per region and
// raises or resolves the matching advisory alert. The assessor never moves
// traffic.
func (m *Manager) assessCascadeRisk() {
	m.mu.Lock()
	type snapshot struct {
		id     string
		failed []string
	}
	snaps := make([]snapshot, 0, len(m.order))
	for _, id := range m.order {
		st := m.regions[id]
		snaps = append(snaps, snapshot{id: id, failed: append([]string(nil), st.failedSubsystems...)})
	}
	m.mu.Unlock()

	for _, snap := range snaps {
		failing := make(map[string]bool, len(snap.failed))
		for _, sub := range snap.failed {
			failing[sub] = true
		}

		for subsystem, service := range cascadeService {
			key := fmt.Sprintf("%s:%s:%s", alerting.KeyCascadeRisk, service, snap.id)
			if !failing[subsystem] {
				m.metrics.CascadeRiskScore.WithLabelValues(service, snap.id).Set(0)
				m.alerts.Resolve(key)
				continue
			}

			risk := m.assessor.Assess(service, snap.id, snap.failed)
			m.metrics.CascadeRiskScore.WithLabelValues(service, snap.id).Set(risk.Score)
			if risk.High() {
				m.alerts.Fire(key, alerting.SeverityCritical, snap.id,
					fmt.Sprintf("cascade risk %.2f for %s: %s", risk.Score, service, risk.Impact),
					risk.Actions)
			} else {
				m.alerts.Resolve(key)
			}
		}
	}
}

// TriggerEvaluation forces one health refresh plus decision pass outside the
// normal tick cadence. Subject to the same mutual exclusion as scheduled
// evaluations.
func (m *Manager) TriggerEvaluation(ctx context.Context) error {
	m.RefreshHealth(ctx)
	return m.EvaluateOnce(ctx)
}

// GetStatus returns a consistent snapshot of the controller.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		ActiveRegion:       m.active,
		FailoverInProgress: m.inProgress,
		Suspended:          m.suspended,
		Regions:            make([]RegionStatus, 0, len(m.order)),
		RecentEvents:       m.events.Events(),
	}
	for _, id := range m.order {
		st := m.regions[id]
		s.Regions = append(s.Regions, RegionStatus{
			ID:                  id,
			Role:                st.info.Role,
			Status:              st.status,
			Health:              st.health,
			ConsecutiveFailures: st.consecutiveFailures,
			FailedSubsystems:    append([]string(nil), st.failedSubsystems...),
		})
	}
	return s
}

// Reset restores the fleet to a steady state after operator intervention:
// the named region becomes active, every other region returns to standby,
// counters clear and automatic failover resumes.
func (m *Manager) Reset(activeRegion string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.regions[activeRegion]; !ok {
		return fmt.Errorf("reset: region %q: %w", activeRegion, ErrUnknownRegion)
	}
	if m.inProgress {
		return fmt.Errorf("reset: %w", ErrFailoverInProgress)
	}

	for id, st := range m.regions {
		if id == activeRegion {
			st.status = region.StatusActive
		} else {
			st.status = region.StatusStandby
		}
		st.consecutiveFailures = 0
		m.metrics.ConsecutiveFailures.WithLabelValues(id).Set(0)
		m.metrics.ObserveRegionStatus(id, string(st.status))
	}
	m.active = activeRegion
	m.suspended = false
	m.alerts.Resolve(alerting.KeyRollbackFailed)

	m.logger.Warn("controller reset by operator",
		zap.String("active_region", activeRegion))
	return nil
}

// ApplyThresholds swaps in new trigger thresholds at runtime.
func (m *Manager) ApplyThresholds(t config.ThresholdConfig) {
	m.mu.Lock()
	m.thresholds = t
	m.mu.Unlock()
	m.logger.Info("thresholds updated",
		zap.Float64("health_threshold", t.HealthThreshold),
		zap.Duration("response_time_threshold", t.ResponseTimeThreshold),
		zap.Int("consecutive_failures", t.ConsecutiveFailures))
}
