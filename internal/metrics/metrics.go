// Package metrics exposes Prometheus instrumentation for the failover
// controller. Each Metrics instance carries its own registry so tests do not
// collide on the global default.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the controller's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	RegionHealthScore   *prometheus.GaugeVec
	ConsecutiveFailures *prometheus.GaugeVec
	RegionStatus        *prometheus.GaugeVec
	FailoverAttempts    *prometheus.CounterVec
	FailoverDuration    prometheus.Histogram
	HealthCheckDuration *prometheus.HistogramVec
	EvaluationsSkipped  prometheus.Counter
	CascadeRiskScore    *prometheus.GaugeVec
}

// New creates the controller metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RegionHealthScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meridian_region_health_score",
			Help: "Latest aggregated health score per region (0.0 to 1.0)",
		}, []string{"region"}),
		ConsecutiveFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meridian_region_consecutive_failures",
			Help: "Consecutive unhealthy evaluations per region",
		}, []string{"region"}),
		RegionStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meridian_region_status",
			Help: "Region failover status (1 for the current status, 0 otherwise)",
		}, []string{"region", "status"}),
		FailoverAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_failover_attempts_total",
			Help: "Failover attempts by result",
		}, []string{"result"}),
		FailoverDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meridian_failover_duration_seconds",
			Help:    "Wall-clock duration of failover orchestrations",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		HealthCheckDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meridian_health_check_duration_seconds",
			Help:    "Duration of per-region health aggregation",
			Buckets: prometheus.DefBuckets,
		}, []string{"region"}),
		EvaluationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meridian_evaluations_skipped_total",
			Help: "Evaluation cycles skipped because a failover was in progress",
		}),
		CascadeRiskScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meridian_cascade_risk_score",
			Help: "Latest cascade risk score per service and region",
		}, []string{"service", "region"}),
	}

	m.registry.MustRegister(
		m.RegionHealthScore,
		m.ConsecutiveFailures,
		m.RegionStatus,
		m.FailoverAttempts,
		m.FailoverDuration,
		m.HealthCheckDuration,
		m.EvaluationsSkipped,
		m.CascadeRiskScore,
	)
	return m
}

// Registry returns the registry backing these collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Failover attempt results.
const (
	ResultSuccess        = "success"
	ResultRolledBack     = "rolled_back"
	ResultRollbackFailed = "rollback_failed"
)

// ObserveRegionStatus sets the status gauge so exactly one status label is 1
// for the region.
func (m *Metrics) ObserveRegionStatus(regionID, status string) {
	for _, s := range []string{"active", "standby", "failing_over", "failed"} {
		v := 0.0
		if s == status {
			v = 1.0
		}
		m.RegionStatus.WithLabelValues(regionID, s).Set(v)
	}
}
