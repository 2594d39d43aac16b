// internal/failover/engine.go
package failover

import (
	"fmt"
	"sort"

	"github.com/FairForge/meridian/internal/config"
	"github.com/FairForge/meridian/internal/region"
)

// Candidate pairs a region with its latest observed state for target
// selection.
type Candidate struct {
	ID     string
	Status region.FailoverStatus
	Health region.Health
}

// triggerReason returns why the active region must fail over, or "" when it
// is healthy enough to keep traffic. The consecutive-failure counter is the
// hysteresis component; score and latency trip immediately.
func triggerReason(h region.Health, consecutiveFailures int, t config.ThresholdConfig) string {
	switch {
	case consecutiveFailures >= t.ConsecutiveFailures:
		return fmt.Sprintf("%d consecutive failed health checks", consecutiveFailures)
	case h.Score < t.HealthThreshold:
		return fmt.Sprintf("health score %.2f below threshold %.2f", h.Score, t.HealthThreshold)
	case h.ResponseTime > t.ResponseTimeThreshold:
		return fmt.Sprintf("response time %s above threshold %s", h.ResponseTime, t.ResponseTimeThreshold)
	}
	return ""
}

// selectTarget picks the best failover target: highest score first, lowest
// latency second, region id as the final tie-break so selection is
// deterministic. The source region and anything failed or mid-failover is
// excluded.
func selectTarget(candidates []Candidate, source string, healthThreshold float64) (string, bool) {
	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == source {
			continue
		}
		if c.Status != region.StatusStandby && c.Status != region.StatusActive {
			continue
		}
		if !c.Health.Healthy(healthThreshold) {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return "", false
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Health.Score != eligible[j].Health.Score {
			return eligible[i].Health.Score > eligible[j].Health.Score
		}
		if eligible[i].Health.ResponseTime != eligible[j].Health.ResponseTime {
			return eligible[i].Health.ResponseTime < eligible[j].Health.ResponseTime
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible[0].ID, true
}
