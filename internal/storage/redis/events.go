package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tempmail/worker/internal/domain"
)

// DefaultChannel 新邮件事件的默认频道
const DefaultChannel = "tempmail:new_mail"

// NewMailEvent 是在频道上传递的新邮件事件
type NewMailEvent struct {
	Address string                `json:"address"`
	Email   domain.MessageSummary `json:"email"`
}

// NewMailHandler 处理从频道收到的事件，Hub.NotifyNewMail 满足该签名
type NewMailHandler func(ctx context.Context, address string, summary domain.MessageSummary) error

// EventBus 通过 Redis 发布订阅在多个进程之间转发新邮件事件
//
// SMTP 进程调用 NotifyNewMail 发布事件，每个 API 进程通过 Relay 转发给本地 WebSocket Hub。
type EventBus struct {
	client  *Client
	channel string
}

// NewEventBus 创建事件总线
func NewEventBus(client *Client, channel string) *EventBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &EventBus{client: client, channel: channel}
}

// NotifyNewMail 发布新邮件事件
func (b *EventBus) NotifyNewMail(ctx context.Context, address string, summary domain.MessageSummary) error {
	payload, err := encodeEvent(address, summary)
	if err != nil {
		return err
	}
	if err := b.client.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish new mail event: %w", err)
	}
	return nil
}

// Relay 订阅频道并把事件交给 handler，直到 ctx 结束
func (b *EventBus) Relay(ctx context.Context, handler NewMailHandler) error {
	pubsub := b.client.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	b.client.log.Info("relaying new mail events", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(ctx, msg, handler)
		}
	}
}

func (b *EventBus) dispatch(ctx context.Context, msg *goredis.Message, handler NewMailHandler) {
	event, err := decodeEvent([]byte(msg.Payload))
	if err != nil {
		b.client.log.Warn("dropping malformed new mail event", zap.Error(err))
		return
	}
	if err := handler(ctx, event.Address, event.Email); err != nil {
		b.client.log.Warn("failed to relay new mail event",
			zap.String("address", event.Address),
			zap.Error(err),
		)
	}
}

func encodeEvent(address string, summary domain.MessageSummary) ([]byte, error) {
	return json.Marshal(NewMailEvent{Address: address, Email: summary})
}

func decodeEvent(payload []byte) (NewMailEvent, error) {
	var event NewMailEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return event, err
	}
	if event.Address == "" {
		return event, errors.New("event without address")
	}
	return event, nil
}
