// Package probe defines the per-subsystem health check contract and the
// AWS-backed implementations used in production. A probe reports a result,
// never an error: transport failures, throttling and timeouts all surface as
// an unhealthy result with the cause attached.
package probe

import (
	"context"
	"time"
)

// Subsystem names used across the fleet.
const (
	SubsystemLoadBalancer = "load-balancer"
	SubsystemCompute      = "compute"
	SubsystemDatabase     = "database"
	SubsystemContainers   = "containers"
)

// Result is the outcome of one subsystem check.
type Result struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthProbe checks one subsystem in one region. Implementations are bound
// to their region at construction time and must honor ctx deadlines.
type HealthProbe interface {
	Check(ctx context.Context) Result
}

// Set maps subsystem name to its probe for a single region.
type Set map[string]HealthProbe

// Func adapts a function to the HealthProbe interface.
type Func func(ctx context.Context) Result

// Check implements HealthProbe.
func (f Func) Check(ctx context.Context) Result {
	return f(ctx)
}

// timed wraps a check body, filling in latency and converting an error into
// an unhealthy result.
func timed(fn func() (bool, error)) Result {
	start := time.Now()
	healthy, err := fn()
	res := Result{
		Healthy: healthy,
		Latency: time.Since(start),
	}
	if err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
}
