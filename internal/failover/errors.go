// internal/failover/errors.go
package failover

import "errors"

var (
	// ErrNoHealthyTarget means no region is eligible to take over traffic.
	ErrNoHealthyTarget = errors.New("no healthy failover target")

	// ErrRollbackFailed means a failed traffic switch could not be reversed.
	// This is the one fatal condition: automatic re-attempts stay suspended
	// until an operator calls Reset.
	ErrRollbackFailed = errors.New("failover rollback failed")

	// ErrFailoverInProgress means an orchestration is already running and
	// the trigger was skipped, not queued.
	ErrFailoverInProgress = errors.New("failover already in progress")

	// ErrSuspended means automatic failover is switched off after a
	// rollback failure and the evaluation was skipped.
	ErrSuspended = errors.New("automatic failover suspended")

	// ErrUnknownRegion means the region id is not part of the fleet.
	ErrUnknownRegion = errors.New("unknown region")
)
