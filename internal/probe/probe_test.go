package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimed_ErrorBecomesUnhealthy(t *testing.T) {
	res := timed(func() (bool, error) {
		return true, errors.New("connection refused")
	})

	assert.False(t, res.Healthy, "an errored check can never be healthy")
	assert.Equal(t, "connection refused", res.Error)
	assert.GreaterOrEqual(t, res.Latency.Nanoseconds(), int64(0))
}

func TestTimed_HealthyResult(t *testing.T) {
	res := timed(func() (bool, error) {
		return true, nil
	})

	assert.True(t, res.Healthy)
	assert.Empty(t, res.Error)
}

func TestFunc_Adapter(t *testing.T) {
	p := Func(func(ctx context.Context) Result {
		return Result{Healthy: true}
	})

	assert.True(t, p.Check(context.Background()).Healthy)
}
