package memory

import (
	"context"
	"sync"
	"time"

	"tempmail/worker/internal/domain"
)

// Store 使用内存保存地址与邮件数据，主要用于开发验证和测试。
type Store struct {
	mu       sync.RWMutex
	aliases  map[string]time.Time       // address -> created_at
	messages map[uint64]*domain.Message // id -> message
	nextID   uint64
	now      func() time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		aliases:  make(map[string]time.Time),
		messages: make(map[uint64]*domain.Message),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// InsertAlias 插入地址，已存在时忽略。
func (s *Store) InsertAlias(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.aliases[address]; !ok {
		s.aliases[address] = s.now()
	}
	return nil
}

// CountAliases 返回地址总数。
func (s *Store) CountAliases(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.aliases)), nil
}

// SaveMessage 保存邮件并分配自增 ID。
func (s *Store) SaveMessage(_ context.Context, message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	message.ID = s.nextID
	if message.ReceivedAt.IsZero() {
		message.ReceivedAt = s.now()
	}

	stored := *message
	s.messages[stored.ID] = &stored
	return nil
}

// GetMessage 根据 ID 获取邮件。
func (s *Store) GetMessage(_ context.Context, id uint64) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	message, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	copied := *message
	return &copied, nil
}

// DeleteMessage 删除邮件，不存在时直接返回。
func (s *Store) DeleteMessage(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, id)
	return nil
}

// DeleteMessagesBefore 删除早于 cutoff 的邮件。
func (s *Store) DeleteMessagesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, message := range s.messages {
		if message.ReceivedAt.Before(cutoff) {
			delete(s.messages, id)
			count++
		}
	}
	return count, nil
}

// Health 内存存储始终可用。
func (s *Store) Health(_ context.Context) error {
	return nil
}

// Close 内存存储无需释放资源。
func (s *Store) Close() error {
	return nil
}
