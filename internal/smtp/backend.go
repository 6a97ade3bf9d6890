package smtp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"tempmail/worker/internal/domain"
	"tempmail/worker/internal/monitoring"
)

// ingestTimeout 单个收件人入库的超时时间
const ingestTimeout = 30 * time.Second

// Ingester 接收一次投递
type Ingester interface {
	Ingest(ctx context.Context, env domain.Envelope) (*domain.Message, error)
}

// Options SMTP Backend 配置
type Options struct {
	// AcceptedDomains 接受投递的域名（小写），为空时接受任意收件人
	AcceptedDomains []string
	// Limiter 连接限流器，为 nil 时不限流
	Limiter *ConnectionLimiter
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 只接收邮件，不提供中继。每个收件人各自入库一次，
// 入库失败只记录日志，仍然向发送方返回 250，避免对方反复重投。
type Backend struct {
	ingester        Ingester
	acceptedDomains map[string]struct{}
	limiter         *ConnectionLimiter
	logger          *zap.Logger
	metrics         *monitoring.Metrics
}

// NewBackend 创建 SMTP Backend。
func NewBackend(ingester Ingester, logger *zap.Logger, metrics *monitoring.Metrics, opts Options) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	accepted := make(map[string]struct{}, len(opts.AcceptedDomains))
	for _, d := range opts.AcceptedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			accepted[d] = struct{}{}
		}
	}
	return &Backend{
		ingester:        ingester,
		acceptedDomains: accepted,
		limiter:         opts.Limiter,
		logger:          logger,
		metrics:         metrics,
	}
}

// NewSession 创建新的 SMTP 会话，连接数超过限制时返回 421。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if b.limiter != nil && !b.limiter.Acquire() {
		b.metrics.RecordSMTPRejected()
		b.logger.Warn("smtp connection rejected by limiter", zap.String("remote_addr", remoteAddr(c)))
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}

	return &session{
		backend: b,
		remote:  remoteAddr(c),
	}, nil
}

func remoteAddr(c *gosmtp.Conn) string {
	if c == nil || c.Conn() == nil {
		return ""
	}
	return c.Conn().RemoteAddr().String()
}

type session struct {
	backend     *Backend
	remote      string
	fromAddress string
	recipients  []string
	releaseOnce sync.Once
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.fromAddress = from
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 未配置接受域名时任何收件人都接受（catch-all）；配置后只接受这些域名下的地址。
// 地址保持原样，不做大小写归一化。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := strings.Trim(strings.TrimSpace(to), "<>")
	if addr == "" {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if len(s.backend.acceptedDomains) > 0 {
		recipientDomain := strings.ToLower(domain.AddressDomain(addr))
		if _, ok := s.backend.acceptedDomains[recipientDomain]; !ok {
			return &gosmtp.SMTPError{
				Code:         550,
				EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
				Message:      "relay access denied - domain not managed by this server",
			}
		}
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 读取邮件内容并为每个收件人入库。
func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	for _, rcpt := range s.recipients {
		s.deliver(rcpt, raw)
	}
	return nil
}

func (s *session) deliver(rcpt string, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	message, err := s.backend.ingester.Ingest(ctx, domain.Envelope{
		From: s.fromAddress,
		To:   rcpt,
		Raw:  bytes.NewReader(raw),
	})
	if err != nil {
		s.backend.logger.Error("error processing email",
			zap.String("from", s.fromAddress),
			zap.String("to", rcpt),
			zap.String("remote_addr", s.remote),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err),
		)
		return
	}

	s.backend.logger.Debug("email accepted",
		zap.String("to", rcpt),
		zap.Uint64("id", message.ID),
	)
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束，释放连接许可。
func (s *session) Logout() error {
	s.releaseOnce.Do(func() {
		if s.backend.limiter != nil {
			s.backend.limiter.Release()
		}
	})
	return nil
}
