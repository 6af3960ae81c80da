// Package route53 implements ddnsync.Provider for Amazon Route 53.
package route53

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddnsync"
)

const defaultTTL = 300

type route53API interface {
	ListHostedZonesByName(ctx context.Context, params *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

type Provider struct {
	client route53API
	logger *zap.Logger
}

// New builds a provider from the default AWS credential chain.
func New(ctx context.Context) (*Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get default AWS config: %w", err)
	}
	return NewWithClient(route53.NewFromConfig(cfg)), nil
}

func NewWithClient(client route53API) *Provider {
	return &Provider{client: client, logger: zap.NewNop()}
}

func (p *Provider) SetLogger(logger *zap.Logger) {
	p.logger = logger.Named("aws_route53_provider")
}

// FindRecord implements ddnsync.Provider.
// zone may be a hosted zone ID or a hosted zone name.
func (p *Provider) FindRecord(ctx context.Context, zone, recordType, name string) (ddnsync.Record, error) {
	zoneID, err := p.hostedZoneID(ctx, zone)
	if err != nil {
		return ddnsync.Record{}, err
	}
	fqdn := fqdn(name)
	out, err := p.client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(fqdn),
		StartRecordType: types.RRType(recordType),
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		p.logger.Sugar().Errorw("could not list record sets", "zone", zoneID, "err", err)
		return ddnsync.Record{}, ddnsync.ProviderError("route53", err)
	}
	for _, rrs := range out.ResourceRecordSets {
		if !strings.EqualFold(aws.ToString(rrs.Name), fqdn) || string(rrs.Type) != recordType {
			continue
		}
		if rrs.AliasTarget != nil {
			return ddnsync.Record{}, ddnsync.ProviderError("route53", fmt.Errorf("%s %s is an alias record and cannot hold an address", recordType, fqdn))
		}
		if len(rrs.ResourceRecords) == 0 {
			break
		}
		ttl := int(aws.ToInt64(rrs.TTL))
		return ddnsync.Record{
			ID:      fqdn,
			Zone:    zone,
			Type:    recordType,
			Name:    fqdn,
			Content: aws.ToString(rrs.ResourceRecords[0].Value),
			TTL:     ttl,
			Meta:    map[string]string{"hosted_zone_id": zoneID},
		}, nil
	}
	return ddnsync.Record{}, ddnsync.NotFound(zone, recordType, name)
}

// UpdateRecord implements ddnsync.Provider by upserting the record set with a single value.
func (p *Provider) UpdateRecord(ctx context.Context, record ddnsync.Record) error {
	zoneID := record.Meta["hosted_zone_id"]
	if zoneID == "" {
		var err error
		if zoneID, err = p.hostedZoneID(ctx, record.Zone); err != nil {
			return err
		}
	}
	ttl := int64(record.TTL)
	if ttl == 0 {
		ttl = defaultTTL
	}
	_, err := p.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String("managed by ddnsync"),
			Changes: []types.Change{{
				Action: types.ChangeActionUpsert,
				ResourceRecordSet: &types.ResourceRecordSet{
					Name:            aws.String(fqdn(record.Name)),
					Type:            types.RRType(record.Type),
					TTL:             aws.Int64(ttl),
					ResourceRecords: []types.ResourceRecord{{Value: aws.String(record.Content)}},
				},
			}},
		},
	})
	if err != nil {
		p.logger.Sugar().Errorw("could not upsert record set", "zone", zoneID, "name", record.Name, "err", err)
		return ddnsync.ProviderError("route53", err)
	}
	p.logger.Sugar().Infow("record set upserted", "zone", zoneID, "name", record.Name, "content", record.Content)
	return nil
}

func (p *Provider) hostedZoneID(ctx context.Context, zone string) (string, error) {
	if isZoneID(zone) {
		return strings.TrimPrefix(zone, "/hostedzone/"), nil
	}
	out, err := p.client.ListHostedZonesByName(ctx, &route53.ListHostedZonesByNameInput{
		DNSName:  aws.String(fqdn(zone)),
		MaxItems: aws.Int32(1),
	})
	if err != nil {
		return "", ddnsync.ProviderError("route53", fmt.Errorf("could not look up hosted zone %s: %w", zone, err))
	}
	for _, hz := range out.HostedZones {
		if strings.EqualFold(aws.ToString(hz.Name), fqdn(zone)) {
			return strings.TrimPrefix(aws.ToString(hz.Id), "/hostedzone/"), nil
		}
	}
	return "", ddnsync.ProviderError("route53", errors.New("no hosted zone named "+zone))
}

// Hosted zone IDs never contain dots; zone names of interest always do.
func isZoneID(zone string) bool {
	return strings.HasPrefix(zone, "/hostedzone/") || !strings.Contains(zone, ".")
}

func fqdn(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}
