package domain

import "time"

// Alias 表示一个已生成的临时地址。
// 只用于统计和去重，插入冲突时静默忽略，之后不会被更新或删除。
type Alias struct {
	Address   string    `json:"address" gorm:"primaryKey;size:255"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定别名表名
func (Alias) TableName() string {
	return "aliases"
}
