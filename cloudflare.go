package ddnsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// NewCloudflare constructs a Cloudflare provider authenticated with a scoped API token.
// The token needs Zone:Read and DNS:Edit on the zone.
func NewCloudflare(token string, opts ...cloudflare.Option) (Provider, error) {
	api, err := cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return newCloudflareProvider(api), nil
}

// NewCloudflareWithKey constructs a Cloudflare provider authenticated with the account email and global API key.
func NewCloudflareWithKey(key, email string, opts ...cloudflare.Option) (Provider, error) {
	api, err := cloudflare.New(key, email, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return newCloudflareProvider(api), nil
}

func newCloudflareProvider(api *cloudflare.API) *cloudflareProvider {
	return &cloudflareProvider{
		api:     api,
		logger:  zap.NewNop(),
		zoneIDs: make(map[string]string),
	}
}

// cloudflareProvider implements ddnsync.Provider.
type cloudflareProvider struct {
	api    *cloudflare.API
	logger *zap.Logger

	mu      sync.Mutex
	zoneIDs map[string]string
}

// FindRecord implements ddnsync.Provider.
func (cf *cloudflareProvider) FindRecord(ctx context.Context, zone, recordType, name string) (Record, error) {
	if cf.api == nil {
		return Record{}, errors.New("ddnsync.cloudflareProvider.FindRecord: provider should be constructed with ddnsync.NewCloudflare")
	}

	zid, err := cf.zoneID(zone)
	if err != nil {
		return Record{}, ProviderError("cloudflare", err)
	}
	cf.logger.Debug("looking up records", zap.String("zone_id", zid), zap.String("type", recordType), zap.String("name", name))

	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.ListDNSRecordsParams{
		Type: recordType,
		Name: name,
	})
	if err != nil {
		return Record{}, ProviderError("cloudflare", fmt.Errorf("error listing DNS records: %w", err))
	}
	cf.logger.Debug("found existing records", zap.Int("count", len(records)))

	for _, r := range records {
		if !strings.EqualFold(strings.TrimSuffix(r.Name, "."), strings.TrimSuffix(name, ".")) || r.Type != recordType {
			continue
		}
		return Record{
			ID:      r.ID,
			Zone:    zone,
			Type:    r.Type,
			Name:    r.Name,
			Content: r.Content,
			TTL:     r.TTL,
			Meta:    map[string]string{"zone_id": zid},
		}, nil
	}
	return Record{}, NotFound(zone, recordType, name)
}

// UpdateRecord implements ddnsync.Provider.
// Only the content is sent, so the proxy status and TTL of the record are left alone.
func (cf *cloudflareProvider) UpdateRecord(ctx context.Context, record Record) error {
	zid := record.Meta["zone_id"]
	if zid == "" {
		var err error
		if zid, err = cf.zoneID(record.Zone); err != nil {
			return ProviderError("cloudflare", err)
		}
	}
	cf.logger.Info("updating record", zap.String("record_id", record.ID), zap.String("content", record.Content))
	updated, err := cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.UpdateDNSRecordParams{
		ID:      record.ID,
		Type:    record.Type,
		Name:    record.Name,
		Content: record.Content,
	})
	if err != nil {
		return ProviderError("cloudflare", fmt.Errorf("unable to update DNS record %s: %w", record.ID, err))
	}
	cf.logger.Debug("record updated", zap.String("record_id", updated.ID), zap.String("content", updated.Content))
	return nil
}

func (cf *cloudflareProvider) zoneID(zone string) (string, error) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if zid, ok := cf.zoneIDs[zone]; ok {
		return zid, nil
	}
	zid, err := cf.api.ZoneIDByName(zone)
	if err != nil {
		return "", fmt.Errorf("unable to get zone ID for %s: %w", zone, err)
	}
	cf.zoneIDs[zone] = zid
	return zid, nil
}
