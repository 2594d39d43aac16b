// internal/region/types.go
package region

import (
	"time"
)

// Role is the configured role hint for a region.
type Role string

const (
	RolePrimary Role = "primary"
	RoleStandby Role = "standby"
)

// FailoverStatus represents a region's position in the failover lifecycle.
type FailoverStatus string

const (
	StatusActive      FailoverStatus = "active"
	StatusStandby     FailoverStatus = "standby"
	StatusFailingOver FailoverStatus = "failing_over"
	StatusFailed      FailoverStatus = "failed"
)

// Health is the composite health of a region at a point in time. Score is
// always the ratio of passing to total subsystem checks; an unreachable
// probe counts as a failing check, never as unknown.
type Health struct {
	Region          string        `json:"region"`
	Score           float64       `json:"health_score"`
	ServicesHealthy int           `json:"services_healthy"`
	ServicesTotal   int           `json:"services_total"`
	ResponseTime    time.Duration `json:"response_time"`
	LastChecked     time.Time     `json:"last_checked"`
}

// Healthy reports whether the region clears the given score threshold.
func (h Health) Healthy(threshold float64) bool {
	return h.Score >= threshold
}

// FailoverEvent records one attempt to move active traffic between regions.
type FailoverEvent struct {
	ID                string        `json:"event_id"`
	Timestamp         time.Time     `json:"timestamp"`
	From              string        `json:"from_region"`
	To                string        `json:"to_region"`
	Reason            string        `json:"trigger_reason"`
	Duration          time.Duration `json:"duration"`
	Success           bool          `json:"success"`
	RollbackPerformed bool          `json:"rollback_performed"`
}

// Info pairs a region identifier with its configured role.
type Info struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
