// Package routing holds the traffic-movement collaborators the failover
// orchestrator drives. All three contracts report success as a boolean: a
// failed call is an orchestration-step failure, never a panic or a returned
// error, and every operation is idempotent so the orchestrator may re-issue
// it during rollback.
package routing

import "context"

// TrafficRouter points the public entry point at a different region.
type TrafficRouter interface {
	Switch(ctx context.Context, from, to string) bool
}

// CDNRouter updates edge origin mappings to a different region.
type CDNRouter interface {
	UpdateOrigin(ctx context.Context, from, to string) bool
}

// CapacityScaler raises serving capacity in a region ahead of a traffic
// switch.
type CapacityScaler interface {
	ScaleUp(ctx context.Context, region string) bool
}
