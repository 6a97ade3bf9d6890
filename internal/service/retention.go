package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tempmail/worker/internal/domain"
	"tempmail/worker/internal/monitoring"
	"tempmail/worker/internal/storage"
)

// RetentionService 定期删除超过保留期的邮件。
type RetentionService struct {
	messages storage.MessageRepository
	maxAge   time.Duration
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// NewRetentionService 创建清理服务，maxAge <= 0 时使用 30 天。
func NewRetentionService(messages storage.MessageRepository, maxAge time.Duration, logger *zap.Logger, metrics *monitoring.Metrics) *RetentionService {
	if maxAge <= 0 {
		maxAge = domain.DefaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionService{
		messages: messages,
		maxAge:   maxAge,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sweep 删除 received_at 早于 now-maxAge 的邮件，返回删除数量。
func (s *RetentionService) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.maxAge)
	deleted, err := s.messages.DeleteMessagesBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("error during scheduled cleanup",
			zap.Time("cutoff", cutoff),
			zap.Error(err),
		)
		return 0, err
	}

	s.metrics.RecordRetentionDeleted(deleted)
	s.logger.Info("retention sweep finished",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
	)
	return deleted, nil
}

// Run 按 interval 执行 Sweep，直到 ctx 结束。单次失败不会中断循环。
func (s *RetentionService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("starting retention task",
		zap.Duration("interval", interval),
		zap.Duration("max_age", s.maxAge),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention task stopped")
			return nil
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		}
	}
}
