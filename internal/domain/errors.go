package domain

import "errors"

var (
	// ErrMessageNotFound 邮件不存在
	ErrMessageNotFound = errors.New("message not found")
	// ErrParse 原始邮件无法解析
	ErrParse = errors.New("malformed message")
	// ErrStorage 存储层读写失败
	ErrStorage = errors.New("storage failure")
	// ErrUpstream 上游域名接口失败
	ErrUpstream = errors.New("upstream failure")
)

// ErrorKind 错误分类，用于日志字段和指标标签
type ErrorKind string

const (
	KindNone     ErrorKind = "ok"
	KindNotFound ErrorKind = "not_found"
	KindParse    ErrorKind = "parse"
	KindStorage  ErrorKind = "storage"
	KindUpstream ErrorKind = "upstream"
	KindUnknown  ErrorKind = "unknown"
)

// KindOf 返回错误所属的分类
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMessageNotFound):
		return KindNotFound
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	default:
		return KindUnknown
	}
}
