package failover

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/meridian/internal/alerting"
	"github.com/FairForge/meridian/internal/cascade"
	"github.com/FairForge/meridian/internal/config"
	"github.com/FairForge/meridian/internal/metrics"
	"github.com/FairForge/meridian/internal/region"
)

// evalStub serves canned health values per region.
type evalStub struct {
	mu      sync.Mutex
	healths map[string]region.Health
	failed  map[string][]string
	calls   int
}

func newEvalStub() *evalStub {
	return &evalStub{
		healths: make(map[string]region.Health),
		failed:  make(map[string][]string),
	}
}

func (e *evalStub) set(id string, score float64, latency time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.healths[id] = region.Health{Score: score, ResponseTime: latency, LastChecked: time.Now()}
}

func (e *evalStub) setFailed(id string, subsystems ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed[id] = subsystems
}

func (e *evalStub) Evaluate(_ context.Context, id string) (region.Health, []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	h := e.healths[id]
	h.Region = id
	return h, e.failed[id]
}

const (
	outcomeSuccess        = "success"
	outcomeRollback       = "rollback"
	outcomeRollbackFailed = "rollback_failed"
)

// execStub records failover attempts and returns a canned outcome. The
// optional started/release channels let tests hold an orchestration open.
type execStub struct {
	mu      sync.Mutex
	calls   []string
	outcome string
	started chan struct{}
	release chan struct{}
	seq     int
	ctxErr  error
}

func (e *execStub) Execute(ctx context.Context, from, to, reason string) (region.FailoverEvent, error) {
	e.mu.Lock()
	e.calls = append(e.calls, from+"->"+to)
	e.seq++
	event := region.FailoverEvent{
		ID:        fmt.Sprintf("evt-%d", e.seq),
		Timestamp: time.Now(),
		From:      from,
		To:        to,
		Reason:    reason,
		Duration:  time.Millisecond,
	}
	outcome := e.outcome
	e.mu.Unlock()

	if e.started != nil {
		e.started <- struct{}{}
	}
	if e.release != nil {
		<-e.release
	}

	e.mu.Lock()
	e.ctxErr = ctx.Err()
	e.mu.Unlock()

	switch outcome {
	case outcomeRollback:
		event.RollbackPerformed = true
		return event, nil
	case outcomeRollbackFailed:
		event.RollbackPerformed = true
		return event, ErrRollbackFailed
	default:
		event.Success = true
		return event, nil
	}
}

func (e *execStub) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type recordedSink struct {
	mu     sync.Mutex
	events []region.FailoverEvent
}

func (s *recordedSink) Record(_ context.Context, event region.FailoverEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func testManagerConfig() *config.Config {
	cfg := config.Default()
	cfg.Regions = []config.RegionConfig{
		{ID: "region-a", Role: "primary"},
		{ID: "region-b", Role: "standby"},
		{ID: "region-c", Role: "standby"},
	}
	return cfg
}

func newTestManager(cfg *config.Config, eval *evalStub, exec *execStub) (*Manager, *alerting.Manager, *recordedSink) {
	alerts := alerting.NewManager(zap.NewNop())
	sink := &recordedSink{}
	m := NewManager(cfg, ManagerDeps{
		Health:   eval,
		Executor: exec,
		Assessor: cascade.NewAssessor(cascade.DefaultGraph(), []string{"dynamodb"}, zap.NewNop()),
		Alerts:   alerts,
		Sink:     sink,
		Metrics:  metrics.New(),
		Logger:   zap.NewNop(),
	})
	return m, alerts, sink
}

func regionByID(t *testing.T, s Status, id string) RegionStatus {
	t.Helper()
	for _, r := range s.Regions {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("region %s not in status", id)
	return RegionStatus{}
}

func TestRefreshHealth_CounterResetsAndIncrements(t *testing.T) {
	eval := newEvalStub()
	m, _, _ := newTestManager(testManagerConfig(), eval, &execStub{})
	ctx := context.Background()

	eval.set("region-a", 0.3, 10*time.Millisecond)
	for i := 1; i <= 3; i++ {
		m.RefreshHealth(ctx)
		assert.Equal(t, i, regionByID(t, m.GetStatus(), "region-a").ConsecutiveFailures)
	}

	// One healthy check resets the counter completely.
	eval.set("region-a", 1.0, 10*time.Millisecond)
	m.RefreshHealth(ctx)
	assert.Equal(t, 0, regionByID(t, m.GetStatus(), "region-a").ConsecutiveFailures)
}

func TestEvaluateOnce_HealthyActiveTakesNoAction(t *testing.T) {
	eval := newEvalStub()
	exec := &execStub{}
	m, _, _ := newTestManager(testManagerConfig(), eval, exec)
	ctx := context.Background()

	for _, id := range []string{"region-a", "region-b", "region-c"} {
		eval.set(id, 1.0, 10*time.Millisecond)
	}
	m.RefreshHealth(ctx)

	require.NoError(t, m.EvaluateOnce(ctx))
	assert.Equal(t, 0, exec.callCount())
	assert.Equal(t, "region-a", m.GetStatus().ActiveRegion)
}

func TestEvaluateOnce_SuccessfulFailoverCommits(t *testing.T) {
	eval := newEvalStub()
	exec := &execStub{outcome: outcomeSuccess}
	m, _, sink := newTestManager(testManagerConfig(), eval, exec)
	ctx := context.Background()

	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.9, 10*time.Millisecond)
	eval.set("region-c", 0.8, 10*time.Millisecond)
	m.RefreshHealth(ctx)

	require.NoError(t, m.EvaluateOnce(ctx))

	s := m.GetStatus()
	assert.Equal(t, "region-b", s.ActiveRegion)
	assert.Equal(t, region.StatusActive, regionByID(t, s, "region-b").Status)
	assert.Equal(t, region.StatusFailed, regionByID(t, s, "region-a").Status)
	assert.False(t, s.FailoverInProgress)
	require.Len(t, s.RecentEvents, 1)
	assert.True(t, s.RecentEvents[0].Success)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	assert.Equal(t, "region-a", sink.events[0].From)
	assert.Equal(t, "region-b", sink.events[0].To)
}

func TestEvaluateOnce_MutualExclusion(t *testing.T) {
	eval := newEvalStub()
	exec := &execStub{
		outcome: outcomeSuccess,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	m, _, _ := newTestManager(testManagerConfig(), eval, exec)
	ctx := context.Background()

	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.9, 10*time.Millisecond)
	m.RefreshHealth(ctx)

	done := make(chan error, 1)
	go func() { done <- m.EvaluateOnce(ctx) }()
	<-exec.started

	// A trigger arriving mid-orchestration is skipped, never queued.
	assert.ErrorIs(t, m.EvaluateOnce(ctx), ErrFailoverInProgress)
	assert.True(t, m.GetStatus().FailoverInProgress)

	close(exec.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, exec.callCount())
}

func TestEvaluateOnce_RollbackRestoresSource(t *testing.T) {
	eval := newEvalStub()
	exec := &execStub{outcome: outcomeRollback}
	m, _, _ := newTestManager(testManagerConfig(), eval, exec)
	ctx := context.Background()

	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.9, 10*time.Millisecond)
	m.RefreshHealth(ctx)

	require.NoError(t, m.EvaluateOnce(ctx))

	s := m.GetStatus()
	assert.Equal(t, "region-a", s.ActiveRegion)
	assert.Equal(t, region.StatusActive, regionByID(t, s, "region-a").Status)
	assert.Equal(t, region.StatusStandby, regionByID(t, s, "region-b").Status)
	require.Len(t, s.RecentEvents, 1)
	assert.False(t, s.RecentEvents[0].Success)
	assert.True(t, s.RecentEvents[0].RollbackPerformed)
}

func TestEvaluateOnce_RollbackFailureSuspends(t *testing.T) {
	eval := newEvalStub()
	exec := &execStub{outcome: outcomeRollbackFailed}
	m, alerts, _ := newTestManager(testManagerConfig(), eval, exec)
	ctx := context.Background()

	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.9, 10*time.Millisecond)
	m.RefreshHealth(ctx)

	err := m.EvaluateOnce(ctx)
	assert.ErrorIs(t, err, ErrRollbackFailed)

	s := m.GetStatus()
	assert.Empty(t, s.ActiveRegion)
	assert.True(t, s.Suspended)
	assert.Equal(t, region.StatusFailed, regionByID(t, s, "region-a").Status)
	assert.Equal(t, region.StatusFailed, regionByID(t, s, "region-b").Status)
	assert.True(t, alerts.IsFiring(alerting.KeyRollbackFailed))

	// Automatic re-attempts stay off until an operator resets.
	assert.ErrorIs(t, m.EvaluateOnce(ctx), ErrSuspended)
	assert.Equal(t, 1, exec.callCount())
}

func TestReset_RestoresSteadyState(t *testing.T) {
	eval := newEvalStub()
	exec := &execStub{outcome: outcomeRollbackFailed}
	m, alerts, _ := newTestManager(testManagerConfig(), eval, exec)
	ctx := context.Background()

	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.9, 10*time.Millisecond)
	m.RefreshHealth(ctx)
	_ = m.EvaluateOnce(ctx)
	require.True(t, m.GetStatus().Suspended)

	require.NoError(t, m.Reset("region-c"))

	s := m.GetStatus()
	assert.Equal(t, "region-c", s.ActiveRegion)
	assert.False(t, s.Suspended)
	assert.Equal(t, region.StatusActive, regionByID(t, s, "region-c").Status)
	assert.Equal(t, region.StatusStandby, regionByID(t, s, "region-a").Status)
	assert.Equal(t, region.StatusStandby, regionByID(t, s, "region-b").Status)
	assert.Equal(t, 0, regionByID(t, s, "region-a").ConsecutiveFailures)
	assert.False(t, alerts.IsFiring(alerting.KeyRollbackFailed))
}

func TestReset_UnknownRegion(t *testing.T) {
	m, _, _ := newTestManager(testManagerConfig(), newEvalStub(), &execStub{})
	assert.ErrorIs(t, m.Reset("nowhere"), ErrUnknownRegion)
}

func TestEvaluateOnce_NoHealthyTarget(t *testing.T) {
	eval := newEvalStub()
	exec := &execStub{}
	m, alerts, _ := newTestManager(testManagerConfig(), eval, exec)
	ctx := context.Background()

	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.4, 10*time.Millisecond)
	eval.set("region-c", 0.4, 10*time.Millisecond)
	m.RefreshHealth(ctx)

	assert.ErrorIs(t, m.EvaluateOnce(ctx), ErrNoHealthyTarget)
	assert.ErrorIs(t, m.EvaluateOnce(ctx), ErrNoHealthyTarget)

	// One ongoing incident, not one alert per tick, and no traffic moved.
	assert.Len(t, alerts.Firing(), 1)
	assert.Equal(t, 0, exec.callCount())
	s := m.GetStatus()
	assert.Equal(t, "region-a", s.ActiveRegion)
	assert.Equal(t, region.StatusActive, regionByID(t, s, "region-a").Status)
}

func TestTriggerEvaluation_SurvivesCallerCancellation(t *testing.T) {
	eval := newEvalStub()
	exec := &execStub{
		outcome: outcomeSuccess,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	m, _, _ := newTestManager(testManagerConfig(), eval, exec)

	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.9, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.TriggerEvaluation(ctx) }()
	<-exec.started

	// The caller drops mid-orchestration. The switch must still run to
	// completion and commit instead of failing into a suspended state.
	cancel()
	close(exec.release)
	require.NoError(t, <-done)

	exec.mu.Lock()
	ctxErr := exec.ctxErr
	exec.mu.Unlock()
	assert.NoError(t, ctxErr)

	s := m.GetStatus()
	assert.Equal(t, "region-b", s.ActiveRegion)
	assert.Equal(t, region.StatusActive, regionByID(t, s, "region-b").Status)
	assert.False(t, s.Suspended)
	require.Len(t, s.RecentEvents, 1)
	assert.True(t, s.RecentEvents[0].Success)
}

func TestEvaluateOnce_DeterministicTieBreak(t *testing.T) {
	eval := newEvalStub()
	exec := &execStub{outcome: outcomeRollback}
	m, _, _ := newTestManager(testManagerConfig(), eval, exec)
	ctx := context.Background()

	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.9, 200*time.Millisecond)
	eval.set("region-c", 0.9, 500*time.Millisecond)
	m.RefreshHealth(ctx)

	require.NoError(t, m.EvaluateOnce(ctx))

	exec.mu.Lock()
	defer exec.mu.Unlock()
	require.Len(t, exec.calls, 1)
	assert.Equal(t, "region-a->region-b", exec.calls[0])
}

func TestEvaluateOnce_EventRingStaysBounded(t *testing.T) {
	cfg := testManagerConfig()
	cfg.Events.MaxEvents = 1
	eval := newEvalStub()
	exec := &execStub{outcome: outcomeSuccess}
	m, _, _ := newTestManager(cfg, eval, exec)
	ctx := context.Background()

	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.9, 10*time.Millisecond)
	eval.set("region-c", 0.8, 10*time.Millisecond)
	m.RefreshHealth(ctx)
	require.NoError(t, m.EvaluateOnce(ctx))

	// The new active degrades next, forcing a second failover to region-c.
	eval.set("region-b", 0.2, 10*time.Millisecond)
	m.RefreshHealth(ctx)
	require.NoError(t, m.EvaluateOnce(ctx))

	s := m.GetStatus()
	require.Len(t, s.RecentEvents, 1)
	assert.Equal(t, "region-b", s.RecentEvents[0].From)
	assert.Equal(t, "region-c", s.RecentEvents[0].To)
}

func TestEvaluateOnce_CascadeAlertLifecycle(t *testing.T) {
	eval := newEvalStub()
	m, alerts, _ := newTestManager(testManagerConfig(), eval, &execStub{})
	ctx := context.Background()

	for _, id := range []string{"region-a", "region-b", "region-c"} {
		eval.set(id, 1.0, 10*time.Millisecond)
	}
	eval.set("region-a", 0.5, 10*time.Millisecond)
	eval.setFailed("region-a", "compute", "database")
	m.RefreshHealth(ctx)

	_ = m.EvaluateOnce(ctx)

	// rds has three dependents plus two failed checks, well over 0.7.
	key := fmt.Sprintf("%s:%s:%s", alerting.KeyCascadeRisk, "rds", "region-a")
	assert.True(t, alerts.IsFiring(key))

	eval.set("region-a", 1.0, 10*time.Millisecond)
	eval.setFailed("region-a")
	m.RefreshHealth(ctx)
	require.NoError(t, m.EvaluateOnce(ctx))
	assert.False(t, alerts.IsFiring(key))
}
