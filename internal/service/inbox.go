package service

import (
	"context"

	"go.uber.org/zap"

	"tempmail/worker/internal/domain"
	"tempmail/worker/internal/monitoring"
	"tempmail/worker/internal/storage"
)

// InboxService 封装收件箱查询、邮件详情和删除。
type InboxService struct {
	messages storage.MessageRepository
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewInboxService 创建收件箱服务。
func NewInboxService(messages storage.MessageRepository, logger *zap.Logger, metrics *monitoring.Metrics) *InboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxService{messages: messages, logger: logger, metrics: metrics}
}

// List 返回地址下的邮件摘要，按接收时间倒序。
func (s *InboxService) List(ctx context.Context, query domain.InboxQuery) ([]domain.MessageSummary, error) {
	query.Limit = query.EffectiveLimit()
	emails, err := s.messages.ListInbox(ctx, query)
	if err != nil {
		return nil, err
	}
	if emails == nil {
		emails = []domain.MessageSummary{}
	}
	return emails, nil
}

// Get 返回单封邮件，不存在时返回 domain.ErrMessageNotFound。
func (s *InboxService) Get(ctx context.Context, id uint64) (*domain.Message, error) {
	return s.messages.GetMessage(ctx, id)
}

// Delete 删除邮件，不存在时同样视为成功。
func (s *InboxService) Delete(ctx context.Context, id uint64) error {
	if err := s.messages.DeleteMessage(ctx, id); err != nil {
		return err
	}
	s.metrics.RecordMessageDeleted()
	s.logger.Debug("message deleted", zap.Uint64("id", id))
	return nil
}
