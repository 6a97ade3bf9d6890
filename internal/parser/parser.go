package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // 注册 GBK、Big5、ISO-2022-JP 等字符集
	"github.com/emersion/go-message/mail"

	"tempmail/worker/internal/domain"
)

// ParsedEmail 表示解析后的邮件内容。
type ParsedEmail struct {
	Subject   string // 解码后的主题，缺失时为空
	From      string // From 头原文，不解码编码字
	To        string // To 头原文
	Recipient string // 投递头中的收件地址，见 HeaderRecipient
	Text      string // 第一个 text/plain 部分
	HTML      string // 第一个 text/html 部分
}

// recipientHeaders 投递代理写入的原始收件人头，按优先级排列
var recipientHeaders = []string{"Delivered-To", "X-Original-To", "Envelope-To"}

// ParseEmail 解析原始 MIME 邮件，提取主题、发件人、文本和 HTML 正文。
//
// 空内容或头部无法解析时返回包装了 domain.ErrParse 的错误。
// 未知字符集和单个部分读取失败不视为错误，尽量保留已解析的内容。
func ParseEmail(raw []byte) (*ParsedEmail, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty message", domain.ErrParse)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	parsed := &ParsedEmail{
		Subject:   headerText(&mr.Header, "Subject"),
		From:      mr.Header.Get("From"),
		To:        mr.Header.Get("To"),
		Recipient: extractRecipient(mr.Header),
	}

	for parsed.Text == "" || parsed.HTML == "" {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) && part != nil {
				readInline(part, parsed)
				continue
			}
			break
		}
		readInline(part, parsed)
	}

	return parsed, nil
}

// HeaderRecipient 只解析头部，返回投递时的收件地址
//
// 依次检查 Delivered-To、X-Original-To、Envelope-To，最后取 To 中的第一个地址。
// 地址保持原样，不做大小写归一化。
func HeaderRecipient(raw []byte) (string, error) {
	parsed, err := ParseEmail(raw)
	if err != nil {
		return "", err
	}
	if parsed.Recipient == "" {
		return "", errors.New("no recipient header found")
	}
	return parsed.Recipient, nil
}

// readInline 读取正文部分，附件直接跳过
func readInline(part *mail.Part, parsed *ParsedEmail) {
	var mediaType string
	switch h := part.Header.(type) {
	case *mail.InlineHeader:
		mediaType, _, _ = h.ContentType()
	case *mail.AttachmentHeader:
		// 没有 Content-Type 和 Content-Disposition 的部分按 text/plain 处理
		if h.Get("Content-Type") != "" || h.Get("Content-Disposition") != "" {
			return
		}
	default:
		return
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}

	switch mediaType {
	case "text/plain":
		if parsed.Text == "" {
			body, _ := io.ReadAll(part.Body)
			parsed.Text = string(body)
		}
	case "text/html":
		if parsed.HTML == "" {
			body, _ := io.ReadAll(part.Body)
			parsed.HTML = string(body)
		}
	}
}

// headerText 返回解码后的头字段，解码失败时退回原文
func headerText(h *mail.Header, key string) string {
	value, err := h.Text(key)
	if err != nil {
		return h.Get(key)
	}
	return value
}

// extractRecipient 从投递头中提取收件地址
func extractRecipient(h mail.Header) string {
	for _, key := range recipientHeaders {
		if value := strings.Trim(strings.TrimSpace(h.Get(key)), "<>"); value != "" {
			return value
		}
	}

	toList, err := h.AddressList("To")
	if err == nil && len(toList) > 0 {
		return toList[0].Address
	}
	return ""
}
