// internal/routing/scaler.go
package routing

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"go.uber.org/zap"
)

// scalerClients are the region-bound clients the scaler drives.
type scalerClients struct {
	autoscaling *autoscaling.Client
	ecs         *ecs.Client
}

// AWSScaler scales both Auto Scaling Groups and ECS services in the target
// region. Both target kinds follow the same growth-and-ceiling policy: grow
// to max(current+2, current*1.5), clamped to the target's ceiling (group
// MaxSize for ASGs, maxTasksPerService for ECS services).
type AWSScaler struct {
	clients            map[string]scalerClients
	maxTasksPerService int32
	logger             *zap.Logger
}

// NewAWSScaler builds a scaler with clients for every region up front.
func NewAWSScaler(regionCfgs map[string]aws.Config, maxTasksPerService int, logger *zap.Logger) *AWSScaler {
	clients := make(map[string]scalerClients, len(regionCfgs))
	for region, cfg := range regionCfgs {
		clients[region] = scalerClients{
			autoscaling: autoscaling.NewFromConfig(cfg),
			ecs:         ecs.NewFromConfig(cfg),
		}
	}
	return &AWSScaler{
		clients:            clients,
		maxTasksPerService: int32(maxTasksPerService),
		logger:             logger,
	}
}

// ScaleUp implements CapacityScaler. Setting a desired capacity it already
// has is a no-op on both APIs, so re-issuing is safe.
func (s *AWSScaler) ScaleUp(ctx context.Context, region string) bool {
	clients, ok := s.clients[region]
	if !ok {
		s.logger.Error("no scaler clients for region", zap.String("region", region))
		return false
	}

	ok1 := s.scaleAutoScalingGroups(ctx, region, clients.autoscaling)
	ok2 := s.scaleECSServices(ctx, region, clients.ecs)
	return ok1 && ok2
}

func (s *AWSScaler) scaleAutoScalingGroups(ctx context.Context, region string, client *autoscaling.Client) bool {
	groups, err := client.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{})
	if err != nil {
		s.logger.Error("describe auto scaling groups failed",
			zap.String("region", region), zap.Error(err))
		return false
	}

	for _, asg := range groups.AutoScalingGroups {
		current := aws.ToInt32(asg.DesiredCapacity)
		target := targetCapacity(current, aws.ToInt32(asg.MaxSize))
		if target == current {
			continue
		}

		_, err := client.UpdateAutoScalingGroup(ctx, &autoscaling.UpdateAutoScalingGroupInput{
			AutoScalingGroupName: asg.AutoScalingGroupName,
			DesiredCapacity:      aws.Int32(target),
		})
		if err != nil {
			s.logger.Error("scale auto scaling group failed",
				zap.String("group", aws.ToString(asg.AutoScalingGroupName)),
				zap.Error(err))
			return false
		}
		s.logger.Info("auto scaling group scaled",
			zap.String("group", aws.ToString(asg.AutoScalingGroupName)),
			zap.Int32("from", current),
			zap.Int32("to", target))
	}
	return true
}

func (s *AWSScaler) scaleECSServices(ctx context.Context, region string, client *ecs.Client) bool {
	clusters, err := client.ListClusters(ctx, &ecs.ListClustersInput{})
	if err != nil {
		s.logger.Error("list clusters failed",
			zap.String("region", region), zap.Error(err))
		return false
	}

	for _, clusterArn := range clusters.ClusterArns {
		services, err := client.ListServices(ctx, &ecs.ListServicesInput{
			Cluster: aws.String(clusterArn),
		})
		if err != nil {
			s.logger.Error("list services failed",
				zap.String("cluster", clusterArn), zap.Error(err))
			return false
		}
		if len(services.ServiceArns) == 0 {
			continue
		}

		detail, err := client.DescribeServices(ctx, &ecs.DescribeServicesInput{
			Cluster:  aws.String(clusterArn),
			Services: services.ServiceArns,
		})
		if err != nil {
			s.logger.Error("describe services failed",
				zap.String("cluster", clusterArn), zap.Error(err))
			return false
		}

		for _, svc := range detail.Services {
			current := svc.DesiredCount
			target := targetCapacity(current, s.maxTasksPerService)
			if target == current {
				continue
			}

			_, err := client.UpdateService(ctx, &ecs.UpdateServiceInput{
				Cluster:      aws.String(clusterArn),
				Service:      svc.ServiceArn,
				DesiredCount: aws.Int32(target),
			})
			if err != nil {
				s.logger.Error("scale service failed",
					zap.String("service", aws.ToString(svc.ServiceName)),
					zap.Error(err))
				return false
			}
			s.logger.Info("ecs service scaled",
				zap.String("service", aws.ToString(svc.ServiceName)),
				zap.Int32("from", current),
				zap.Int32("to", target))
		}
	}
	return true
}

// targetCapacity grows current by max(+2, *1.5) and clamps to ceiling.
// Capacity never shrinks here; shrinking is not this component's job.
func targetCapacity(current, ceiling int32) int32 {
	next := current + 2
	if scaled := int32(float64(current) * 1.5); scaled > next {
		next = scaled
	}
	if ceiling > 0 && next > ceiling {
		next = ceiling
	}
	if next < current {
		next = current
	}
	return next
}
