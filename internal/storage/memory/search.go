package memory

import (
	"context"
	"sort"
	"strings"

	"tempmail/worker/internal/domain"
)

// ListInbox 查询收件箱（内存存储实现）
//
// 地址精确匹配；搜索词对 subject 和 body_text 做 ASCII 大小写不敏感的子串匹配，
// 与 SQLite 默认 LIKE 行为一致。
func (s *Store) ListInbox(_ context.Context, query domain.InboxQuery) ([]domain.MessageSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]*domain.Message, 0)
	for _, msg := range s.messages {
		if msg.Address != query.Address {
			continue
		}
		if !matchesSearch(msg, query.Search) {
			continue
		}
		filtered = append(filtered, msg)
	}

	sortNewestFirst(filtered)

	limit := query.EffectiveLimit()
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	summaries := make([]domain.MessageSummary, 0, len(filtered))
	for _, msg := range filtered {
		summaries = append(summaries, msg.Summary())
	}
	return summaries, nil
}

// matchesSearch 检查邮件主题或正文是否包含搜索词
func matchesSearch(msg *domain.Message, search string) bool {
	if search == "" {
		return true
	}
	needle := asciiLower(search)
	return strings.Contains(asciiLower(msg.Subject), needle) ||
		strings.Contains(asciiLower(msg.BodyText), needle)
}

// asciiLower 只转换 ASCII 字母
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// sortNewestFirst 按接收时间倒序排序，时间相同按 ID 倒序
func sortNewestFirst(messages []*domain.Message) {
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].ReceivedAt.Equal(messages[j].ReceivedAt) {
			return messages[i].ID > messages[j].ID
		}
		return messages[i].ReceivedAt.After(messages[j].ReceivedAt)
	})
}
