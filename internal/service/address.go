package service

import (
	"context"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"tempmail/worker/internal/domain"
	"tempmail/worker/internal/monitoring"
	"tempmail/worker/internal/storage"
)

const (
	randomPrefixLength   = 6
	randomPrefixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateInput 定义生成地址的输入，两个字段都可以为空。
type GenerateInput struct {
	Prefix string `json:"prefix"`
	Domain string `json:"domain"`
}

// GenerateResult 生成结果。
type GenerateResult struct {
	Prefix  string `json:"prefix"`
	Domain  string `json:"domain"`
	Address string `json:"address"`
}

// AddressService 负责生成临时地址并登记到地址表。
type AddressService struct {
	aliases        storage.AliasRepository
	fallbackDomain string
	logger         *zap.Logger
	metrics        *monitoring.Metrics
}

// NewAddressService 创建地址服务。
func NewAddressService(aliases storage.AliasRepository, fallbackDomain string, logger *zap.Logger, metrics *monitoring.Metrics) *AddressService {
	if fallbackDomain == "" {
		fallbackDomain = domain.FallbackDomain
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddressService{
		aliases:        aliases,
		fallbackDomain: fallbackDomain,
		logger:         logger,
		metrics:        metrics,
	}
}

// Generate 生成一个地址。
//
// 前缀为空时随机生成 6 位 [a-z0-9]，否则去掉非法字符；清理后为空同样随机生成。
// 域名为空时使用默认域名，不校验域名是否可投递。
// 登记失败只记录日志，地址照常返回。
func (s *AddressService) Generate(ctx context.Context, input GenerateInput) GenerateResult {
	prefix := domain.SanitizePrefix(input.Prefix)
	if prefix == "" {
		prefix = randomPrefix()
	}

	domainName := strings.TrimSpace(input.Domain)
	if domainName == "" {
		domainName = s.fallbackDomain
	}

	address := domain.BuildAddress(prefix, domainName)
	if err := s.aliases.InsertAlias(ctx, address); err != nil {
		s.logger.Error("failed to save alias",
			zap.String("address", address),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err),
		)
	}
	s.metrics.RecordAddressGenerated()

	return GenerateResult{
		Prefix:  prefix,
		Domain:  domainName,
		Address: address,
	}
}

func randomPrefix() string {
	var b strings.Builder
	b.Grow(randomPrefixLength)
	for i := 0; i < randomPrefixLength; i++ {
		b.WriteByte(randomPrefixAlphabet[rand.Intn(len(randomPrefixAlphabet))])
	}
	return b.String()
}
