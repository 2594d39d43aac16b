// internal/routing/route53.go
package routing

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"go.uber.org/zap"
)

const defaultRecordTTL = 300

// Route53Router rewrites A/CNAME records whose values embed the source
// region tag so they point at the target region instead. Route 53 is a
// global service; one client serves every region.
type Route53Router struct {
	client *route53.Client
	logger *zap.Logger
}

// NewRoute53Router creates a DNS traffic router.
func NewRoute53Router(client *route53.Client, logger *zap.Logger) *Route53Router {
	return &Route53Router{client: client, logger: logger}
}

// Switch implements TrafficRouter. UPSERT is idempotent, so re-issuing the
// same switch (including during rollback) is safe.
func (r *Route53Router) Switch(ctx context.Context, from, to string) bool {
	zones, err := r.client.ListHostedZones(ctx, &route53.ListHostedZonesInput{})
	if err != nil {
		r.logger.Error("list hosted zones failed", zap.Error(err))
		return false
	}

	for _, zone := range zones.HostedZones {
		if !r.switchZone(ctx, zone.Id, from, to) {
			return false
		}
	}
	return true
}

func (r *Route53Router) switchZone(ctx context.Context, zoneID *string, from, to string) bool {
	records, err := r.client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId: zoneID,
	})
	if err != nil {
		r.logger.Error("list record sets failed",
			zap.String("zone", aws.ToString(zoneID)), zap.Error(err))
		return false
	}

	for _, record := range records.ResourceRecordSets {
		if record.Type != r53types.RRTypeA && record.Type != r53types.RRTypeCname {
			continue
		}

		changed := false
		values := make([]r53types.ResourceRecord, 0, len(record.ResourceRecords))
		for _, rr := range record.ResourceRecords {
			value := aws.ToString(rr.Value)
			if strings.Contains(value, from) {
				value = strings.ReplaceAll(value, from, to)
				changed = true
			}
			values = append(values, r53types.ResourceRecord{Value: aws.String(value)})
		}
		if !changed {
			continue
		}

		ttl := record.TTL
		if ttl == nil {
			ttl = aws.Int64(defaultRecordTTL)
		}

		_, err := r.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
			HostedZoneId: zoneID,
			ChangeBatch: &r53types.ChangeBatch{
				Changes: []r53types.Change{{
					Action: r53types.ChangeActionUpsert,
					ResourceRecordSet: &r53types.ResourceRecordSet{
						Name:            record.Name,
						Type:            record.Type,
						TTL:             ttl,
						ResourceRecords: values,
					},
				}},
			},
		})
		if err != nil {
			r.logger.Error("record upsert failed",
				zap.String("record", aws.ToString(record.Name)),
				zap.Error(err))
			return false
		}

		r.logger.Info("dns record switched",
			zap.String("record", aws.ToString(record.Name)),
			zap.String("to_region", to))
	}
	return true
}
