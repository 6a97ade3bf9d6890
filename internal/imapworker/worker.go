package imapworker

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"tempmail/worker/internal/config"
	"tempmail/worker/internal/domain"
	"tempmail/worker/internal/parser"
)

// ingestTimeout 单封邮件入库的超时时间
const ingestTimeout = 30 * time.Second

// Ingester 接收一次投递
type Ingester interface {
	Ingest(ctx context.Context, env domain.Envelope) (*domain.Message, error)
}

// mailboxClient 是 worker 用到的 IMAP 客户端操作，*client.Client 满足该接口
type mailboxClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// Worker 定期从 IMAP 邮箱拉取未读邮件并入库。
//
// 用于没有公网 25 端口、由上游邮箱做 catch-all 转发的部署。
// 拉取 BODY[] 会让服务器把邮件标记为已读，同一次进程内还会记录处理过的最大 UID。
type Worker struct {
	cfg             config.IMAPConfig
	ingester        Ingester
	acceptedDomains map[string]struct{}
	maxBytes        int64
	log             *zap.Logger
	dial            func(addr string) (mailboxClient, error)
	lastUID         uint32
}

// New 创建 IMAP worker，acceptedDomains 为空时接受任意收件人。
func New(cfg config.IMAPConfig, ingester Ingester, acceptedDomains []string, maxBytes int64, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}

	accepted := make(map[string]struct{}, len(acceptedDomains))
	for _, d := range acceptedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			accepted[d] = struct{}{}
		}
	}

	w := &Worker{
		cfg:             cfg,
		ingester:        ingester,
		acceptedDomains: accepted,
		maxBytes:        maxBytes,
		log:             log,
	}
	w.dial = w.dialIMAP
	return w
}

func (w *Worker) dialIMAP(addr string) (mailboxClient, error) {
	if w.cfg.TLS {
		return client.DialTLS(addr, &tls.Config{ServerName: w.cfg.Host})
	}
	return client.Dial(addr)
}

// Start 立即拉取一次，之后按间隔轮询，直到 ctx 结束
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Info("IMAP worker started",
		zap.String("host", w.cfg.Host),
		zap.String("mailbox", w.cfg.Mailbox),
		zap.Duration("interval", w.cfg.PollInterval),
	)

	if _, err := w.Poll(ctx); err != nil {
		w.log.Error("IMAP poll failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info("IMAP worker stopping")
			return
		case <-ticker.C:
			if _, err := w.Poll(ctx); err != nil {
				w.log.Error("IMAP poll failed", zap.Error(err))
			}
		}
	}
}

// Poll 拉取一次未读邮件，返回成功入库的数量
func (w *Worker) Poll(ctx context.Context) (int, error) {
	addr := net.JoinHostPort(w.cfg.Host, strconv.Itoa(w.cfg.Port))
	c, err := w.dial(addr)
	if err != nil {
		return 0, fmt.Errorf("failed to dial IMAP: %w", err)
	}
	defer func() { _ = c.Logout() }()

	if err := c.Login(w.cfg.Username, w.cfg.Password); err != nil {
		return 0, fmt.Errorf("failed to login: %w", err)
	}
	if _, err := c.Select(w.cfg.Mailbox, false); err != nil {
		return 0, fmt.Errorf("failed to select %s: %w", w.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return 0, fmt.Errorf("failed to search unseen: %w", err)
	}

	seqSet := new(imap.SeqSet)
	for _, uid := range uids {
		if uid > w.lastUID {
			seqSet.AddNum(uid)
		}
	}
	if seqSet.Empty() {
		return 0, nil
	}

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	stored := 0
	for msg := range messages {
		if msg.Uid > w.lastUID {
			w.lastUID = msg.Uid
		}
		ok, err := w.ingestMessage(ctx, msg, section)
		if err != nil {
			w.log.Warn("failed to ingest IMAP message",
				zap.Uint32("uid", msg.Uid),
				zap.String("kind", string(domain.KindOf(err))),
				zap.Error(err),
			)
			continue
		}
		if ok {
			stored++
		}
	}

	if err := <-done; err != nil {
		return stored, fmt.Errorf("fetch failed: %w", err)
	}
	return stored, nil
}

// ingestMessage 入库一封邮件，收件域名不受管理时跳过并返回 false
func (w *Worker) ingestMessage(ctx context.Context, msg *imap.Message, section *imap.BodySectionName) (bool, error) {
	body := msg.GetBody(section)
	if body == nil {
		return false, fmt.Errorf("%w: server didn't return message body", domain.ErrParse)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return false, fmt.Errorf("%w: read body: %v", domain.ErrParse, err)
	}
	if w.maxBytes > 0 && int64(len(raw)) > w.maxBytes {
		return false, fmt.Errorf("%w: message exceeds %d bytes", domain.ErrParse, w.maxBytes)
	}

	recipient, err := parser.HeaderRecipient(raw)
	if err != nil {
		return false, err
	}
	if !w.accepts(recipient) {
		w.log.Debug("skipping message for unmanaged domain",
			zap.Uint32("uid", msg.Uid),
			zap.String("recipient", recipient),
		)
		return false, nil
	}

	ingestCtx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	if _, err := w.ingester.Ingest(ingestCtx, domain.Envelope{
		To:  recipient,
		Raw: bytes.NewReader(raw),
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Worker) accepts(address string) bool {
	if len(w.acceptedDomains) == 0 {
		return true
	}
	_, ok := w.acceptedDomains[strings.ToLower(domain.AddressDomain(address))]
	return ok
}
