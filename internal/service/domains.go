package service

import (
	"context"

	"go.uber.org/zap"

	"tempmail/worker/internal/domain"
	"tempmail/worker/internal/monitoring"
)

// MissingTokenWarning 未配置上游 Token 时随域名列表返回的提示
const MissingTokenWarning = "TEMPMAIL_DOMAINS_CLOUDFLARE_API_TOKEN not set. Configure a Cloudflare API token with Zone:Read permission to list your domains."

// ZoneLister 列出上游账号下可用的域名。
type ZoneLister interface {
	ListZones(ctx context.Context) ([]string, error)
}

// DomainList 是 /api/domains 的返回内容。
type DomainList struct {
	Domains []string `json:"domains"`
	Warning string   `json:"warning,omitempty"`
}

// DomainService 返回可用于生成地址的域名，每次请求都访问上游，不做缓存。
type DomainService struct {
	zones    ZoneLister
	fallback string
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewDomainService 创建域名服务，zones 为 nil 表示没有配置上游。
func NewDomainService(zones ZoneLister, fallback string, logger *zap.Logger, metrics *monitoring.Metrics) *DomainService {
	if fallback == "" {
		fallback = domain.FallbackDomain
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DomainService{zones: zones, fallback: fallback, logger: logger, metrics: metrics}
}

// List 返回域名列表。
func (s *DomainService) List(ctx context.Context) (DomainList, error) {
	if s.zones == nil {
		return DomainList{
			Domains: []string{s.fallback},
			Warning: MissingTokenWarning,
		}, nil
	}

	zones, err := s.zones.ListZones(ctx)
	if err != nil {
		s.metrics.RecordUpstreamError()
		s.logger.Error("failed to fetch domains from upstream", zap.Error(err))
		return DomainList{Domains: []string{}}, err
	}
	if zones == nil {
		zones = []string{}
	}
	return DomainList{Domains: zones}, nil
}
