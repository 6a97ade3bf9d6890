package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tempmail/worker/internal/domain"
)

// ========== Message Repository ==========

// SaveMessage 插入一封邮件并回填自增 ID
func (s *Store) SaveMessage(ctx context.Context, message *domain.Message) error {
	if message.ReceivedAt.IsZero() {
		message.ReceivedAt = time.Now().UTC()
	} else {
		message.ReceivedAt = message.ReceivedAt.UTC()
	}

	if err := s.gormDB.WithContext(ctx).Create(message).Error; err != nil {
		return storageError("insert message", err)
	}
	return nil
}

// ListInbox 查询收件箱，按接收时间倒序
//
// 搜索使用 LIKE，大小写规则取决于数据库默认排序规则。
func (s *Store) ListInbox(ctx context.Context, query domain.InboxQuery) ([]domain.MessageSummary, error) {
	tx := s.gormDB.WithContext(ctx).
		Model(&domain.Message{}).
		Select("id", "sender", "subject", "body_text", "received_at").
		Where("address = ?", query.Address)

	if query.Search != "" {
		pattern := "%" + query.Search + "%"
		tx = tx.Where("(subject LIKE ? OR body_text LIKE ?)", pattern, pattern)
	}

	summaries := make([]domain.MessageSummary, 0)
	err := tx.Order("received_at DESC").
		Order("id DESC").
		Limit(query.EffectiveLimit()).
		Find(&summaries).Error
	if err != nil {
		return nil, storageError("list inbox", err)
	}
	return summaries, nil
}

// GetMessage 根据 ID 获取完整邮件
func (s *Store) GetMessage(ctx context.Context, id uint64) (*domain.Message, error) {
	var message domain.Message
	err := s.gormDB.WithContext(ctx).First(&message, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, storageError(fmt.Sprintf("get message %d", id), err)
	}
	return &message, nil
}

// DeleteMessage 删除邮件，不区分不存在和删除成功
func (s *Store) DeleteMessage(ctx context.Context, id uint64) error {
	if err := s.gormDB.WithContext(ctx).Delete(&domain.Message{}, id).Error; err != nil {
		return storageError(fmt.Sprintf("delete message %d", id), err)
	}
	return nil
}

// DeleteMessagesBefore 单条语句批量删除过期邮件
func (s *Store) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.gormDB.WithContext(ctx).
		Where("received_at < ?", cutoff.UTC()).
		Delete(&domain.Message{})
	if result.Error != nil {
		return 0, storageError("delete expired messages", result.Error)
	}
	return result.RowsAffected, nil
}
