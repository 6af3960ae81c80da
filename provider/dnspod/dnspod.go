// Package dnspod implements ddnsync.Provider for Tencent Cloud DNSPod.
package dnspod

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	sdkerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	dnspod "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/dnspod/v20210323"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddnsync"
	"github.com/Travis-Britz/ddnsync/internal/dnsname"
)

const (
	endpoint = "dnspod.tencentcloudapi.com"
	// defaultLine is the DNSPod "default" resolution line.
	defaultLine = "默认"

	codeNoRecords = "ResourceNotFound.NoDataOfRecord"
)

type dnspodAPI interface {
	DescribeRecordList(request *dnspod.DescribeRecordListRequest) (*dnspod.DescribeRecordListResponse, error)
	ModifyRecord(request *dnspod.ModifyRecordRequest) (*dnspod.ModifyRecordResponse, error)
}

type Provider struct {
	client dnspodAPI
	logger *zap.Logger
}

func New(secretID, secretKey string) (*Provider, error) {
	credential := common.NewCredential(secretID, secretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = endpoint
	client, err := dnspod.NewClient(credential, "", cpf)
	if err != nil {
		return nil, fmt.Errorf("create tencent dns client: %w", err)
	}
	return NewWithClient(client), nil
}

func NewWithClient(client dnspodAPI) *Provider {
	return &Provider{client: client, logger: zap.NewNop()}
}

func (p *Provider) SetLogger(logger *zap.Logger) {
	p.logger = logger.Named("dnspod")
}

// FindRecord implements ddnsync.Provider.
func (p *Provider) FindRecord(ctx context.Context, zone, recordType, name string) (ddnsync.Record, error) {
	sub := dnsname.Relative(name, zone)
	req := dnspod.NewDescribeRecordListRequest()
	req.Domain = common.StringPtr(zone)
	req.Subdomain = common.StringPtr(sub)
	req.RecordType = common.StringPtr(recordType)

	resp, err := p.client.DescribeRecordList(req)
	if err != nil {
		var sdkErr *sdkerrors.TencentCloudSDKError
		if errors.As(err, &sdkErr) && sdkErr.GetCode() == codeNoRecords {
			return ddnsync.Record{}, ddnsync.NotFound(zone, recordType, name)
		}
		p.logger.Error("failed to list records", zap.String("domain", zone), zap.Error(err))
		return ddnsync.Record{}, ddnsync.ProviderError("dnspod: list records", err)
	}
	if resp.Response == nil {
		return ddnsync.Record{}, ddnsync.NotFound(zone, recordType, name)
	}
	for _, r := range resp.Response.RecordList {
		if r == nil || r.RecordId == nil || !strings.EqualFold(value(r.Name), sub) || value(r.Type) != recordType {
			continue
		}
		rec := ddnsync.Record{
			ID:      strconv.FormatUint(*r.RecordId, 10),
			Zone:    zone,
			Type:    recordType,
			Name:    dnsname.Absolute(sub, zone),
			Content: value(r.Value),
			Meta:    map[string]string{"subdomain": sub, "line": value(r.Line), "line_id": value(r.LineId)},
		}
		if r.TTL != nil {
			rec.TTL = int(*r.TTL)
		}
		return rec, nil
	}
	return ddnsync.Record{}, ddnsync.NotFound(zone, recordType, name)
}

// UpdateRecord implements ddnsync.Provider.
func (p *Provider) UpdateRecord(ctx context.Context, record ddnsync.Record) error {
	id, err := strconv.ParseUint(record.ID, 10, 64)
	if err != nil {
		return ddnsync.ProviderError("dnspod: parse record ID", err)
	}
	sub := record.Meta["subdomain"]
	if sub == "" {
		sub = dnsname.Relative(record.Name, record.Zone)
	}
	line := record.Meta["line"]
	if line == "" {
		line = defaultLine
	}

	req := dnspod.NewModifyRecordRequest()
	req.Domain = common.StringPtr(record.Zone)
	req.RecordId = common.Uint64Ptr(id)
	req.SubDomain = common.StringPtr(sub)
	req.RecordType = common.StringPtr(record.Type)
	req.RecordLine = common.StringPtr(line)
	req.Value = common.StringPtr(record.Content)
	if lineID := record.Meta["line_id"]; lineID != "" {
		req.RecordLineId = common.StringPtr(lineID)
	}
	if record.TTL > 0 {
		req.TTL = common.Uint64Ptr(uint64(record.TTL))
	}

	if _, err := p.client.ModifyRecord(req); err != nil {
		p.logger.Error("failed to update DNS record", zap.String("domain", record.Zone), zap.String("record_id", record.ID), zap.Error(err))
		return ddnsync.ProviderError("dnspod: update record", err)
	}
	p.logger.Info("DNS record updated", zap.String("domain", record.Zone), zap.String("record_id", record.ID))
	return nil
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
