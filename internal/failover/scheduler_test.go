package failover

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_StopsOnCancel(t *testing.T) {
	eval := newEvalStub()
	for _, id := range []string{"region-a", "region-b", "region-c"} {
		eval.set(id, 1.0, 10*time.Millisecond)
	}
	m, _, _ := newTestManager(testManagerConfig(), eval, &execStub{})

	cfg := testManagerConfig().Monitor
	cfg.HealthCheckInterval = 2 * time.Millisecond
	cfg.EvaluationInterval = 4 * time.Millisecond
	s := NewScheduler(m, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	// The priming refresh plus several health ticks each evaluate all
	// three regions.
	eval.mu.Lock()
	defer eval.mu.Unlock()
	assert.GreaterOrEqual(t, eval.calls, 6)
}

func TestScheduler_TriggersFailoverOnDegradedActive(t *testing.T) {
	eval := newEvalStub()
	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.9, 10*time.Millisecond)
	eval.set("region-c", 0.8, 10*time.Millisecond)
	exec := &execStub{outcome: outcomeSuccess}
	m, _, _ := newTestManager(testManagerConfig(), eval, exec)

	cfg := testManagerConfig().Monitor
	cfg.HealthCheckInterval = 2 * time.Millisecond
	cfg.EvaluationInterval = 4 * time.Millisecond
	s := NewScheduler(m, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return m.GetStatus().ActiveRegion == "region-b"
	}, time.Second, 2*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 1, exec.callCount())
}

func TestScheduler_StopDoesNotInterruptOrchestration(t *testing.T) {
	eval := newEvalStub()
	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.9, 10*time.Millisecond)
	eval.set("region-c", 0.8, 10*time.Millisecond)
	exec := &execStub{
		outcome: outcomeSuccess,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	m, _, _ := newTestManager(testManagerConfig(), eval, exec)

	cfg := testManagerConfig().Monitor
	cfg.HealthCheckInterval = 2 * time.Millisecond
	cfg.EvaluationInterval = 4 * time.Millisecond
	s := NewScheduler(m, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	<-exec.started

	// Stop arrives mid-orchestration. The switch still finishes and
	// commits; only the next tick honors the stop.
	cancel()
	close(exec.release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	exec.mu.Lock()
	ctxErr := exec.ctxErr
	exec.mu.Unlock()
	assert.NoError(t, ctxErr)

	st := m.GetStatus()
	assert.Equal(t, "region-b", st.ActiveRegion)
	require.Len(t, st.RecentEvents, 1)
	assert.True(t, st.RecentEvents[0].Success)
}

func TestScheduler_EvaluationTickRefreshesFirst(t *testing.T) {
	eval := newEvalStub()
	for _, id := range []string{"region-a", "region-b", "region-c"} {
		eval.set(id, 1.0, 10*time.Millisecond)
	}
	exec := &execStub{outcome: outcomeSuccess}
	m, _, _ := newTestManager(testManagerConfig(), eval, exec)

	// Health ticks effectively never fire, so only the evaluation tick's
	// own refresh can observe the degradation below.
	cfg := testManagerConfig().Monitor
	cfg.HealthCheckInterval = time.Hour
	cfg.EvaluationInterval = 4 * time.Millisecond
	s := NewScheduler(m, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Let the priming refresh see healthy data before degrading.
	require.Eventually(t, func() bool {
		eval.mu.Lock()
		defer eval.mu.Unlock()
		return eval.calls >= 3
	}, time.Second, time.Millisecond)
	eval.set("region-a", 0.3, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return m.GetStatus().ActiveRegion == "region-b"
	}, time.Second, 2*time.Millisecond)

	cancel()
	<-done
}

func TestScheduler_KeepsTickingThroughNoHealthyTarget(t *testing.T) {
	eval := newEvalStub()
	eval.set("region-a", 0.3, 10*time.Millisecond)
	eval.set("region-b", 0.4, 10*time.Millisecond)
	eval.set("region-c", 0.4, 10*time.Millisecond)
	exec := &execStub{}
	m, alerts, _ := newTestManager(testManagerConfig(), eval, exec)

	cfg := testManagerConfig().Monitor
	cfg.HealthCheckInterval = 2 * time.Millisecond
	cfg.EvaluationInterval = 4 * time.Millisecond
	s := NewScheduler(m, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	// The loop kept running and the condition stayed one incident.
	assert.Equal(t, 0, exec.callCount())
	assert.Len(t, alerts.Firing(), 1)
}
