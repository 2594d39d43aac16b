// internal/routing/cloudfront.go
package routing

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"go.uber.org/zap"
)

// CloudFrontRouter rewrites distribution origin domains that embed the
// source region tag. Like Route 53, CloudFront is a global service.
type CloudFrontRouter struct {
	client *cloudfront.Client
	logger *zap.Logger
}

// NewCloudFrontRouter creates a CDN origin router.
func NewCloudFrontRouter(client *cloudfront.Client, logger *zap.Logger) *CloudFrontRouter {
	return &CloudFrontRouter{client: client, logger: logger}
}

// UpdateOrigin implements CDNRouter.
func (r *CloudFrontRouter) UpdateOrigin(ctx context.Context, from, to string) bool {
	dists, err := r.client.ListDistributions(ctx, &cloudfront.ListDistributionsInput{})
	if err != nil {
		r.logger.Error("list distributions failed", zap.Error(err))
		return false
	}
	if dists.DistributionList == nil || len(dists.DistributionList.Items) == 0 {
		return true
	}

	for _, dist := range dists.DistributionList.Items {
		if !r.updateDistribution(ctx, dist.Id, from, to) {
			return false
		}
	}
	return true
}

func (r *CloudFrontRouter) updateDistribution(ctx context.Context, distID *string, from, to string) bool {
	cfg, err := r.client.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{
		Id: distID,
	})
	if err != nil {
		r.logger.Error("get distribution config failed",
			zap.String("distribution", aws.ToString(distID)), zap.Error(err))
		return false
	}

	dc := cfg.DistributionConfig
	if dc == nil || dc.Origins == nil {
		return true
	}

	updated := false
	for i := range dc.Origins.Items {
		domain := aws.ToString(dc.Origins.Items[i].DomainName)
		if !strings.Contains(domain, from) {
			continue
		}
		newDomain := strings.ReplaceAll(domain, from, to)
		dc.Origins.Items[i].DomainName = aws.String(newDomain)
		updated = true
		r.logger.Info("cdn origin updated",
			zap.String("distribution", aws.ToString(distID)),
			zap.String("origin", newDomain))
	}
	if !updated {
		return true
	}

	_, err = r.client.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
		Id:                 distID,
		DistributionConfig: dc,
		IfMatch:            cfg.ETag,
	})
	if err != nil {
		r.logger.Error("update distribution failed",
			zap.String("distribution", aws.ToString(distID)), zap.Error(err))
		return false
	}
	return true
}
