package domain

import (
	"io"
	"time"
)

const (
	// DefaultInboxLimit 收件箱列表默认返回条数
	DefaultInboxLimit = 20

	// DefaultRetention 邮件默认保留时间
	DefaultRetention = 30 * 24 * time.Hour

	// FallbackDomain 未配置域名来源时使用的域名
	FallbackDomain = "example.com"
)

// InboxQuery 收件箱查询条件
type InboxQuery struct {
	Address string // 精确匹配，区分大小写
	Search  string // 在 subject 或 body_text 中做子串匹配，空表示不过滤
	Limit   int    // 返回条数上限，<= 0 时使用 DefaultInboxLimit
}

// EffectiveLimit 返回实际使用的条数上限
func (q InboxQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultInboxLimit
	}
	return q.Limit
}

// Envelope 是一次投递的信封信息和原始 MIME 数据
type Envelope struct {
	From string
	To   string
	Raw  io.Reader
}
