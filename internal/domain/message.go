package domain

import "time"

// NoSubject 是邮件缺少 Subject 头时使用的占位主题
const NoSubject = "(No Subject)"

// Message 表示一封已接收的邮件。
// Address 保存投递时的原始收件地址，不做大小写归一化，与 Alias 之间没有外键约束。
type Message struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Address    string    `json:"address" gorm:"size:255;index;not null"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	BodyText   string    `json:"body_text"`
	BodyHTML   string    `json:"body_html"`
	ReceivedAt time.Time `json:"received_at" gorm:"index;not null"`
}

// TableName 指定邮件表名
func (Message) TableName() string {
	return "emails"
}

// Summary 返回收件箱列表使用的精简视图
func (m *Message) Summary() MessageSummary {
	return MessageSummary{
		ID:         m.ID,
		Sender:     m.Sender,
		Subject:    m.Subject,
		BodyText:   m.BodyText,
		ReceivedAt: m.ReceivedAt,
	}
}

// MessageSummary 是收件箱列表中的单条记录，不包含 HTML 正文
type MessageSummary struct {
	ID         uint64    `json:"id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	BodyText   string    `json:"body_text"`
	ReceivedAt time.Time `json:"received_at"`
}
