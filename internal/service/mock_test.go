package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"tempmail/worker/internal/domain"
)

// MockStore 模拟存储接口
type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertAlias(ctx context.Context, address string) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *MockStore) CountAliases(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) SaveMessage(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockStore) ListInbox(ctx context.Context, query domain.InboxQuery) ([]domain.MessageSummary, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MessageSummary), args.Error(1)
}

func (m *MockStore) GetMessage(ctx context.Context, id uint64) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockStore) DeleteMessage(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// recordingNotifier 记录收到的新邮件事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.MessageSummary
	addrs  []string
	err    error
}

func (n *recordingNotifier) NotifyNewMail(_ context.Context, address string, summary domain.MessageSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.addrs = append(n.addrs, address)
	n.events = append(n.events, summary)
	return n.err
}

// fakeZones 固定返回的上游域名
type fakeZones struct {
	zones []string
	err   error
	calls int
}

func (f *fakeZones) ListZones(context.Context) ([]string, error) {
	f.calls++
	return f.zones, f.err
}
