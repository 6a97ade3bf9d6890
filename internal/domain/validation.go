package domain

import (
	"regexp"
	"strings"
)

// prefixDisallowed 匹配本地部分中不允许出现的字符
var prefixDisallowed = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizePrefix 清理用户提交的地址前缀
//
// 只保留字母、数字、点、下划线和连字符，其余字符直接丢弃而不是拒绝请求。
// 保留原有大小写，不限制长度。
func SanitizePrefix(prefix string) string {
	return prefixDisallowed.ReplaceAllString(prefix, "")
}

// BuildAddress 拼接完整地址
func BuildAddress(prefix, domain string) string {
	return prefix + "@" + domain
}

// AddressDomain 返回地址中 @ 之后的部分，去掉尖括号，不含 @ 时返回空串
func AddressDomain(address string) string {
	address = strings.Trim(strings.TrimSpace(address), "<>")
	idx := strings.LastIndex(address, "@")
	if idx < 0 || idx == len(address)-1 {
		return ""
	}
	return address[idx+1:]
}
