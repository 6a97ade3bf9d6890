package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"tempmail/worker/internal/domain"
	"tempmail/worker/internal/monitoring"
	"tempmail/worker/internal/parser"
	"tempmail/worker/internal/storage"
)

// Notifier 接收新邮件事件。
type Notifier interface {
	NotifyNewMail(ctx context.Context, address string, summary domain.MessageSummary) error
}

// IngestService 把一次投递解析后写入邮件表。
//
// SMTP、IMAP 拉取和 mbox 导入共用同一入口。
type IngestService struct {
	messages storage.MessageRepository
	notifier Notifier
	maxBytes int64
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// IngestOption 配置 IngestService。
type IngestOption func(*IngestService)

// WithNotifier 设置新邮件通知。
func WithNotifier(n Notifier) IngestOption {
	return func(s *IngestService) { s.notifier = n }
}

// WithMaxBytes 限制单封邮件大小，<= 0 表示不限制。
func WithMaxBytes(n int64) IngestOption {
	return func(s *IngestService) { s.maxBytes = n }
}

// NewIngestService 创建入库服务。
func NewIngestService(messages storage.MessageRepository, logger *zap.Logger, metrics *monitoring.Metrics, opts ...IngestOption) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &IngestService{
		messages: messages,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest 读取完整邮件并保存一行记录。
//
// 收件地址使用信封中的原始值，不归一化也不去重；信封收件人为空时退回到投递头。
// 发件人优先取解码后的 From 头，缺失时使用信封发件人。
// 返回的错误可用 domain.KindOf 分类，调用方记录日志后仍应向发送方确认接收。
func (s *IngestService) Ingest(ctx context.Context, env domain.Envelope) (*domain.Message, error) {
	message, err := s.ingest(ctx, env)
	s.metrics.RecordMessageIngested(string(domain.KindOf(err)))
	return message, err
}

func (s *IngestService) ingest(ctx context.Context, env domain.Envelope) (*domain.Message, error) {
	if env.Raw == nil {
		return nil, fmt.Errorf("%w: empty message", domain.ErrParse)
	}

	reader := env.Raw
	if s.maxBytes > 0 {
		reader = io.LimitReader(env.Raw, s.maxBytes+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read message: %v", domain.ErrParse, err)
	}
	if s.maxBytes > 0 && int64(len(raw)) > s.maxBytes {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", domain.ErrParse, s.maxBytes)
	}

	parsed, err := parser.ParseEmail(raw)
	if err != nil {
		return nil, err
	}

	address := env.To
	if address == "" {
		address = parsed.Recipient
	}
	sender := parsed.From
	if sender == "" {
		sender = env.From
	}
	subject := parsed.Subject
	if subject == "" {
		subject = domain.NoSubject
	}

	message := &domain.Message{
		Address:    address,
		Sender:     sender,
		Subject:    subject,
		BodyText:   parsed.Text,
		BodyHTML:   parsed.HTML,
		ReceivedAt: s.now(),
	}
	if err := s.messages.SaveMessage(ctx, message); err != nil {
		return nil, err
	}

	s.logger.Info("message stored",
		zap.Uint64("id", message.ID),
		zap.String("address", message.Address),
		zap.String("sender", message.Sender),
		zap.Int("size", len(raw)),
	)

	if s.notifier != nil {
		if err := s.notifier.NotifyNewMail(ctx, message.Address, message.Summary()); err != nil {
			s.logger.Warn("failed to publish new mail event",
				zap.Uint64("id", message.ID),
				zap.Error(err),
			)
		}
	}

	return message, nil
}
