// Package alidns implements ddnsync.Provider for Alibaba Cloud DNS.
package alidns

import (
	"context"
	"fmt"
	"strings"

	alidns "github.com/alibabacloud-go/alidns-20150109/v4/client"
	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	"github.com/alibabacloud-go/tea/tea"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddnsync"
	"github.com/Travis-Britz/ddnsync/internal/dnsname"
)

const endpoint = "alidns.aliyuncs.com"

type alidnsAPI interface {
	DescribeDomainRecords(request *alidns.DescribeDomainRecordsRequest) (*alidns.DescribeDomainRecordsResponse, error)
	UpdateDomainRecord(request *alidns.UpdateDomainRecordRequest) (*alidns.UpdateDomainRecordResponse, error)
}

type Provider struct {
	client alidnsAPI
	logger *zap.Logger
}

func New(accessKeyID, accessKeySecret string) (*Provider, error) {
	cfg := &openapi.Config{
		AccessKeyId:     tea.String(accessKeyID),
		AccessKeySecret: tea.String(accessKeySecret),
		Endpoint:        tea.String(endpoint),
	}
	client, err := alidns.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create aliyun dns client: %w", err)
	}
	return NewWithClient(client), nil
}

func NewWithClient(client alidnsAPI) *Provider {
	return &Provider{client: client, logger: zap.NewNop()}
}

func (p *Provider) SetLogger(logger *zap.Logger) {
	p.logger = logger.Named("alidns")
}

// FindRecord implements ddnsync.Provider.
func (p *Provider) FindRecord(ctx context.Context, zone, recordType, name string) (ddnsync.Record, error) {
	rr := dnsname.Relative(name, zone)
	resp, err := p.client.DescribeDomainRecords(&alidns.DescribeDomainRecordsRequest{
		DomainName: tea.String(zone),
		RRKeyWord:  tea.String(rr),
		Type:       tea.String(recordType),
		PageSize:   tea.Int64(100),
	})
	if err != nil {
		p.logger.Error("failed to list records", zap.String("domain", zone), zap.Error(err))
		return ddnsync.Record{}, ddnsync.ProviderError("alidns: list records", err)
	}
	if resp.Body == nil || resp.Body.DomainRecords == nil {
		return ddnsync.Record{}, ddnsync.NotFound(zone, recordType, name)
	}
	for _, r := range resp.Body.DomainRecords.Record {
		// RRKeyWord is a fuzzy match.
		if !strings.EqualFold(tea.StringValue(r.RR), rr) || tea.StringValue(r.Type) != recordType {
			continue
		}
		return ddnsync.Record{
			ID:      tea.StringValue(r.RecordId),
			Zone:    zone,
			Type:    recordType,
			Name:    dnsname.Absolute(rr, zone),
			Content: tea.StringValue(r.Value),
			TTL:     int(tea.Int64Value(r.TTL)),
			Meta:    map[string]string{"rr": rr, "line": tea.StringValue(r.Line)},
		}, nil
	}
	return ddnsync.Record{}, ddnsync.NotFound(zone, recordType, name)
}

// UpdateRecord implements ddnsync.Provider.
func (p *Provider) UpdateRecord(ctx context.Context, record ddnsync.Record) error {
	rr := record.Meta["rr"]
	if rr == "" {
		rr = dnsname.Relative(record.Name, record.Zone)
	}
	req := &alidns.UpdateDomainRecordRequest{
		RecordId: tea.String(record.ID),
		RR:       tea.String(rr),
		Type:     tea.String(record.Type),
		Value:    tea.String(record.Content),
	}
	if record.TTL > 0 {
		req.TTL = tea.Int64(int64(record.TTL))
	}
	if line := record.Meta["line"]; line != "" {
		req.Line = tea.String(line)
	}
	if _, err := p.client.UpdateDomainRecord(req); err != nil {
		p.logger.Error("failed to update DNS record", zap.String("domain", record.Zone), zap.String("record_id", record.ID), zap.Error(err))
		return ddnsync.ProviderError("alidns: update record", err)
	}
	p.logger.Info("DNS record updated", zap.String("domain", record.Zone), zap.String("record_id", record.ID))
	return nil
}
