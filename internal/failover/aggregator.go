// internal/failover/aggregator.go
package failover

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/FairForge/meridian/internal/config"
	"github.com/FairForge/meridian/internal/probe"
	"github.com/FairForge/meridian/internal/region"
)

// Aggregator runs a region's subsystem probes with bounded parallelism and
// folds the results into one composite health value.
type Aggregator struct {
	probes  map[string]probe.Set
	limiter *rate.Limiter
	workers int
	timeout time.Duration
	logger  *zap.Logger
}

// NewAggregator builds an aggregator over per-region probe sets. The rate
// limiter is shared across all regions so concurrent refreshes stay inside
// cloud API quotas.
func NewAggregator(probes map[string]probe.Set, cfg config.MonitorConfig, logger *zap.Logger) *Aggregator {
	workers := cfg.ProbeWorkers
	if workers < 1 {
		workers = 1
	}
	limit := rate.Limit(cfg.ProbeRateLimit)
	if limit <= 0 {
		limit = rate.Inf
	}
	return &Aggregator{
		probes:  probes,
		limiter: rate.NewLimiter(limit, workers),
		workers: workers,
		timeout: cfg.ProbeTimeout,
		logger:  logger,
	}
}

// Evaluate checks every subsystem of the region and returns the composite
// health plus the sorted names of the failing subsystems. A region with no
// probes scores zero: nothing observed is treated as unhealthy.
func (a *Aggregator) Evaluate(ctx context.Context, regionID string) (region.Health, []string) {
	start := time.Now()
	set := a.probes[regionID]
	if len(set) == 0 {
		return region.Health{Region: regionID, LastChecked: start}, nil
	}

	type outcome struct {
		subsystem string
		result    probe.Result
	}

	sem := make(chan struct{}, a.workers)
	results := make(chan outcome, len(set))
	var wg sync.WaitGroup
	for name, p := range set {
		wg.Add(1)
		go func(name string, p probe.HealthProbe) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := a.limiter.Wait(ctx); err != nil {
				results <- outcome{name, probe.Result{Error: err.Error()}}
				return
			}
			checkCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			results <- outcome{name, p.Check(checkCtx)}
		}(name, p)
	}
	wg.Wait()
	close(results)

	healthy := 0
	var failed []string
	for out := range results {
		if out.result.Healthy {
			healthy++
			continue
		}
		failed = append(failed, out.subsystem)
		a.logger.Debug("subsystem check failed",
			zap.String("region", regionID),
			zap.String("subsystem", out.subsystem),
			zap.String("error", out.result.Error))
	}
	sort.Strings(failed)

	return region.Health{
		Region:          regionID,
		Score:           float64(healthy) / float64(len(set)),
		ServicesHealthy: healthy,
		ServicesTotal:   len(set),
		ResponseTime:    time.Since(start),
		LastChecked:     time.Now(),
	}, failed
}
