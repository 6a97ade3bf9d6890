package service

import (
	"context"

	"go.uber.org/zap"

	"tempmail/worker/internal/storage"
)

// StatsService 提供首页统计。
type StatsService struct {
	aliases storage.AliasRepository
	logger  *zap.Logger
}

// NewStatsService 创建统计服务。
func NewStatsService(aliases storage.AliasRepository, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{aliases: aliases, logger: logger}
}

// TotalAddresses 返回生成过的地址总数，查询失败时返回 0。
func (s *StatsService) TotalAddresses(ctx context.Context) int64 {
	count, err := s.aliases.CountAliases(ctx)
	if err != nil {
		s.logger.Warn("failed to count aliases", zap.Error(err))
		return 0
	}
	return count
}
