// Package cascade scores the risk that a failing service drags its
// dependents down with it. The dependency graph is static and traversed one
// hop: the assessor advises, it never moves traffic itself.
package cascade

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Risk score weights: per failed endpoint, per direct dependent, and the
// service's own criticality (data-tier foundations weigh more).
const (
	weightFailedEndpoint = 0.3
	weightDependent      = 0.4

	criticalityDefault  = 0.5
	criticalityDataTier = 0.8
	HighRiskThreshold   = 0.7
)

// Graph maps a service to the services that depend on it directly.
type Graph map[string][]string

// Dependents returns the direct dependents of a service, sorted for
// deterministic output.
func (g Graph) Dependents(service string) []string {
	deps := make([]string, len(g[service]))
	copy(deps, g[service])
	sort.Strings(deps)
	return deps
}

// DefaultGraph returns the fleet's standard service dependency graph.
func DefaultGraph() Graph {
	return Graph{
		"dynamodb": {"lambda", "ecs", "ec2", "rds"},
		"rds":      {"lambda", "ecs", "ec2"},
		"lambda":   {"dynamodb", "rds", "s3"},
		"ecs":      {"dynamodb", "rds", "elbv2"},
		"ec2":      {"dynamodb", "rds"},
		"elbv2":    {"ec2", "ecs"},
	}
}

// Risk is one cascade assessment for a service in a region.
type Risk struct {
	Service    string   `json:"service"`
	Region     string   `json:"region"`
	Dependents []string `json:"dependent_services"`
	Score      float64  `json:"risk_score"`
	Impact     string   `json:"potential_impact"`
	Actions    []string `json:"recommended_actions"`
}

// High reports whether the risk clears the high-cascade-risk threshold.
func (r Risk) High() bool {
	return r.Score > HighRiskThreshold
}

// Assessor computes cascade risk from the static graph.
type Assessor struct {
	graph       Graph
	criticality map[string]float64
	logger      *zap.Logger
}

// NewAssessor creates an assessor over the given graph. dataTierServices
// names the foundational services that carry the higher criticality weight.
func NewAssessor(graph Graph, dataTierServices []string, logger *zap.Logger) *Assessor {
	criticality := make(map[string]float64, len(dataTierServices))
	for _, svc := range dataTierServices {
		criticality[svc] = criticalityDataTier
	}
	return &Assessor{
		graph:       graph,
		criticality: criticality,
		logger:      logger,
	}
}

// Assess scores cascade risk for a service given its failed checks this
// cycle. The score is a clipped weighted sum; it carries no history.
func (a *Assessor) Assess(service, region string, failedChecks []string) Risk {
	dependents := a.graph.Dependents(service)

	score := float64(len(failedChecks))*weightFailedEndpoint +
		float64(len(dependents))*weightDependent +
		a.criticalityOf(service)
	if score > 1.0 {
		score = 1.0
	}

	risk := Risk{
		Service:    service,
		Region:     region,
		Dependents: dependents,
		Score:      score,
		Impact:     classifyImpact(score),
		Actions:    a.recommendActions(service, dependents),
	}

	if risk.High() {
		a.logger.Warn("high cascade risk",
			zap.String("service", service),
			zap.String("region", region),
			zap.Float64("score", score),
			zap.Strings("dependents", dependents))
	}
	return risk
}

func (a *Assessor) criticalityOf(service string) float64 {
	if w, ok := a.criticality[service]; ok {
		return w
	}
	return criticalityDefault
}

func classifyImpact(score float64) string {
	switch {
	case score > 0.8:
		return "Critical - multi-service cascade failure likely"
	case score > 0.6:
		return "High - significant service disruption expected"
	case score > 0.4:
		return "Medium - limited service impact"
	default:
		return "Low - minimal cascade risk"
	}
}

func (a *Assessor) recommendActions(service string, dependents []string) []string {
	actions := []string{
		"Prepare failover procedures",
		"Scale up healthy regions",
		"Flag circuit breakers on dependent call paths",
	}
	if len(dependents) > 0 {
		actions = append([]string{
			fmt.Sprintf("Monitor dependent services: %v", dependents),
		}, actions...)
	}
	if a.criticalityOf(service) >= criticalityDataTier {
		actions = append(actions,
			"Pre-stage failover for the data tier",
			"Prepare for region-wide service impact")
	}
	return actions
}
