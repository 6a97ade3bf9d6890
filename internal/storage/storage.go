package storage

import (
	"context"
	"time"

	"tempmail/worker/internal/domain"
)

// AliasRepository 定义地址数据存取操作。
type AliasRepository interface {
	// InsertAlias 插入地址，已存在时静默忽略
	InsertAlias(ctx context.Context, address string) error
	CountAliases(ctx context.Context) (int64, error)
}

// MessageRepository 定义邮件数据存取操作。
type MessageRepository interface {
	// SaveMessage 保存邮件并回填 ID，ReceivedAt 为零值时使用当前时间
	SaveMessage(ctx context.Context, message *domain.Message) error
	ListInbox(ctx context.Context, query domain.InboxQuery) ([]domain.MessageSummary, error)
	GetMessage(ctx context.Context, id uint64) (*domain.Message, error)
	// DeleteMessage 删除邮件，不存在时不报错
	DeleteMessage(ctx context.Context, id uint64) error
	// DeleteMessagesBefore 用一条语句删除 received_at 早于 cutoff 的邮件，返回删除数量
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store 定义完整的存储接口。
type Store interface {
	AliasRepository
	MessageRepository

	Health(ctx context.Context) error
	Close() error
}
