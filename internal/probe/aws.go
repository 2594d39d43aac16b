// internal/probe/aws.go
package probe

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"go.uber.org/zap"
)

// Quorum ratios below which a subsystem counts as failing. Values match the
// operational baselines the fleet was tuned with.
const (
	elbHealthyQuorum = 0.5
	ec2HealthyQuorum = 0.7
	rdsHealthyQuorum = 0.8
	ecsHealthyQuorum = 0.7
)

// NewAWSSet builds the standard probe set for one region from a region-bound
// AWS config.
func NewAWSSet(cfg aws.Config, logger *zap.Logger) Set {
	return Set{
		SubsystemLoadBalancer: NewELBProbe(elasticloadbalancingv2.NewFromConfig(cfg), logger),
		SubsystemCompute:      NewEC2Probe(ec2.NewFromConfig(cfg), logger),
		SubsystemDatabase:     NewRDSProbe(rds.NewFromConfig(cfg), logger),
		SubsystemContainers:   NewECSProbe(ecs.NewFromConfig(cfg), logger),
	}
}

// ELBProbe checks that enough load balancers have at least one healthy target.
type ELBProbe struct {
	client *elasticloadbalancingv2.Client
	logger *zap.Logger
}

// NewELBProbe creates a load balancer probe.
func NewELBProbe(client *elasticloadbalancingv2.Client, logger *zap.Logger) *ELBProbe {
	return &ELBProbe{client: client, logger: logger}
}

// Check implements HealthProbe.
func (p *ELBProbe) Check(ctx context.Context) Result {
	return timed(func() (bool, error) {
		out, err := p.client.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{})
		if err != nil {
			return false, err
		}
		if len(out.LoadBalancers) == 0 {
			return true, nil // nothing deployed, nothing failing
		}

		healthy := 0
		for _, lb := range out.LoadBalancers {
			if lb.State == nil || lb.State.Code != elbv2types.LoadBalancerStateEnumActive {
				continue
			}
			ok, err := p.hasHealthyTarget(ctx, lb.LoadBalancerArn)
			if err != nil {
				p.logger.Debug("target health lookup failed",
					zap.String("load_balancer", aws.ToString(lb.LoadBalancerArn)),
					zap.Error(err))
				continue
			}
			if ok {
				healthy++
			}
		}
		return float64(healthy)/float64(len(out.LoadBalancers)) >= elbHealthyQuorum, nil
	})
}

func (p *ELBProbe) hasHealthyTarget(ctx context.Context, lbArn *string) (bool, error) {
	groups, err := p.client.DescribeTargetGroups(ctx, &elasticloadbalancingv2.DescribeTargetGroupsInput{
		LoadBalancerArn: lbArn,
	})
	if err != nil {
		return false, err
	}

	for _, tg := range groups.TargetGroups {
		health, err := p.client.DescribeTargetHealth(ctx, &elasticloadbalancingv2.DescribeTargetHealthInput{
			TargetGroupArn: tg.TargetGroupArn,
		})
		if err != nil {
			return false, err
		}
		for _, desc := range health.TargetHealthDescriptions {
			if desc.TargetHealth != nil && desc.TargetHealth.State == elbv2types.TargetHealthStateEnumHealthy {
				return true, nil
			}
		}
	}
	return false, nil
}

// EC2Probe checks that enough running instances pass both status checks.
type EC2Probe struct {
	client *ec2.Client
	logger *zap.Logger
}

// NewEC2Probe creates a compute probe.
func NewEC2Probe(client *ec2.Client, logger *zap.Logger) *EC2Probe {
	return &EC2Probe{client: client, logger: logger}
}

// Check implements HealthProbe.
func (p *EC2Probe) Check(ctx context.Context) Result {
	return timed(func() (bool, error) {
		out, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("instance-state-name"), Values: []string{"running"}},
			},
		})
		if err != nil {
			return false, err
		}

		var ids []string
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				ids = append(ids, aws.ToString(inst.InstanceId))
			}
		}
		if len(ids) == 0 {
			return true, nil
		}

		status, err := p.client.DescribeInstanceStatus(ctx, &ec2.DescribeInstanceStatusInput{
			InstanceIds: ids,
		})
		if err != nil {
			return false, err
		}

		healthy := 0
		for _, s := range status.InstanceStatuses {
			if s.InstanceStatus != nil && s.InstanceStatus.Status == ec2types.SummaryStatusOk &&
				s.SystemStatus != nil && s.SystemStatus.Status == ec2types.SummaryStatusOk {
				healthy++
			}
		}
		return float64(healthy)/float64(len(ids)) >= ec2HealthyQuorum, nil
	})
}

// RDSProbe checks that enough database instances report available.
type RDSProbe struct {
	client *rds.Client
	logger *zap.Logger
}

// NewRDSProbe creates a database probe.
func NewRDSProbe(client *rds.Client, logger *zap.Logger) *RDSProbe {
	return &RDSProbe{client: client, logger: logger}
}

// Check implements HealthProbe.
func (p *RDSProbe) Check(ctx context.Context) Result {
	return timed(func() (bool, error) {
		out, err := p.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{})
		if err != nil {
			return false, err
		}
		if len(out.DBInstances) == 0 {
			return true, nil
		}

		available := 0
		for _, db := range out.DBInstances {
			if aws.ToString(db.DBInstanceStatus) == "available" {
				available++
			}
		}
		return float64(available)/float64(len(out.DBInstances)) >= rdsHealthyQuorum, nil
	})
}

// ECSProbe checks that enough clusters have enough of their services running.
type ECSProbe struct {
	client *ecs.Client
	logger *zap.Logger
}

// NewECSProbe creates a container orchestration probe.
func NewECSProbe(client *ecs.Client, logger *zap.Logger) *ECSProbe {
	return &ECSProbe{client: client, logger: logger}
}

// Check implements HealthProbe.
func (p *ECSProbe) Check(ctx context.Context) Result {
	return timed(func() (bool, error) {
		clusters, err := p.client.ListClusters(ctx, &ecs.ListClustersInput{})
		if err != nil {
			return false, err
		}
		if len(clusters.ClusterArns) == 0 {
			return true, nil
		}

		healthy := 0
		for _, arn := range clusters.ClusterArns {
			ok, err := p.clusterHealthy(ctx, arn)
			if err != nil {
				p.logger.Debug("cluster health lookup failed",
					zap.String("cluster", arn), zap.Error(err))
				continue
			}
			if ok {
				healthy++
			}
		}
		return float64(healthy)/float64(len(clusters.ClusterArns)) >= ecsHealthyQuorum, nil
	})
}

func (p *ECSProbe) clusterHealthy(ctx context.Context, clusterArn string) (bool, error) {
	detail, err := p.client.DescribeClusters(ctx, &ecs.DescribeClustersInput{
		Clusters: []string{clusterArn},
	})
	if err != nil {
		return false, err
	}
	if len(detail.Clusters) == 0 || aws.ToString(detail.Clusters[0].Status) != "ACTIVE" {
		return false, nil
	}

	services, err := p.client.ListServices(ctx, &ecs.ListServicesInput{
		Cluster: aws.String(clusterArn),
	})
	if err != nil {
		return false, err
	}
	if len(services.ServiceArns) == 0 {
		return true, nil // no services, cluster itself is fine
	}

	detailSvc, err := p.client.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(clusterArn),
		Services: services.ServiceArns,
	})
	if err != nil {
		return false, err
	}

	running := 0
	for _, svc := range detailSvc.Services {
		if aws.ToString(svc.Status) == "ACTIVE" && svc.RunningCount > 0 {
			running++
		}
	}
	return float64(running) >= float64(len(detailSvc.Services))*ecsHealthyQuorum, nil
}
