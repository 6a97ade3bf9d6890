package imapworker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/worker/internal/config"
	"tempmail/worker/internal/domain"
	"tempmail/worker/internal/service"
	"tempmail/worker/internal/storage/memory"
)

// fakeMailbox 内存中的 IMAP 邮箱
type fakeMailbox struct {
	messages  map[uint32]string
	loginErr  error
	fetched   []uint32
	loggedOut bool
}

func (f *fakeMailbox) Login(string, string) error { return f.loginErr }

func (f *fakeMailbox) Select(name string, _ bool) (*imap.MailboxStatus, error) {
	return imap.NewMailboxStatus(name, nil), nil
}

func (f *fakeMailbox) UidSearch(*imap.SearchCriteria) ([]uint32, error) {
	uids := make([]uint32, 0, len(f.messages))
	for uid := range f.messages {
		uids = append(uids, uid)
	}
	return uids, nil
}

func (f *fakeMailbox) UidFetch(seqset *imap.SeqSet, _ []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	for uid := uint32(1); uid <= 100; uid++ {
		raw, ok := f.messages[uid]
		if !ok || !seqset.Contains(uid) {
			continue
		}
		f.fetched = append(f.fetched, uid)
		ch <- &imap.Message{
			Uid:  uid,
			Body: map[*imap.BodySectionName]imap.Literal{{}: bytes.NewBufferString(raw)},
		}
	}
	return nil
}

func (f *fakeMailbox) Logout() error {
	f.loggedOut = true
	return nil
}

func rawMail(headers, body string) string {
	return headers + "From: sender@test.io\r\nSubject: Code\r\n\r\n" + body + "\r\n"
}

func newWorker(t *testing.T, mailbox *fakeMailbox, accepted []string, maxBytes int64) (*Worker, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	w := New(config.IMAPConfig{Host: "imap.test", Port: 993}, service.NewIngestService(store, nil, nil), accepted, maxBytes, nil)
	w.dial = func(string) (mailboxClient, error) { return mailbox, nil }
	return w, store
}

func inbox(t *testing.T, store *memory.Store, address string) []domain.MessageSummary {
	t.Helper()
	emails, err := store.ListInbox(context.Background(), domain.InboxQuery{Address: address})
	require.NoError(t, err)
	return emails
}

func TestWorker_Poll(t *testing.T) {
	t.Run("按投递头确定收件人", func(t *testing.T) {
		mailbox := &fakeMailbox{messages: map[uint32]string{
			1: rawMail("Delivered-To: Abc@x.io\r\nTo: forward@gmail.test\r\n", "one"),
			2: rawMail("To: def@x.io\r\n", "two"),
		}}
		w, store := newWorker(t, mailbox, nil, 0)

		stored, err := w.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, stored)
		assert.True(t, mailbox.loggedOut)

		assert.Len(t, inbox(t, store, "Abc@x.io"), 1)
		assert.Len(t, inbox(t, store, "def@x.io"), 1)
		assert.Empty(t, inbox(t, store, "forward@gmail.test"))
	})

	t.Run("已处理的UID不会重复拉取", func(t *testing.T) {
		mailbox := &fakeMailbox{messages: map[uint32]string{
			3: rawMail("To: abc@x.io\r\n", "one"),
		}}
		w, store := newWorker(t, mailbox, nil, 0)

		_, err := w.Poll(context.Background())
		require.NoError(t, err)
		mailbox.messages[5] = rawMail("To: abc@x.io\r\n", "two")

		stored, err := w.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stored)
		assert.Equal(t, []uint32{3, 5}, mailbox.fetched)
		assert.Len(t, inbox(t, store, "abc@x.io"), 2)
	})

	t.Run("跳过未管理的域名和无收件人的邮件", func(t *testing.T) {
		mailbox := &fakeMailbox{messages: map[uint32]string{
			1: rawMail("To: abc@other.test\r\n", "skip"),
			2: "Subject: no recipient\r\n\r\nbody\r\n",
			3: rawMail("X-Original-To: abc@x.io\r\n", "keep"),
		}}
		w, store := newWorker(t, mailbox, []string{"X.io"}, 0)

		stored, err := w.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stored)
		assert.Empty(t, inbox(t, store, "abc@other.test"))
		assert.Len(t, inbox(t, store, "abc@x.io"), 1)
	})

	t.Run("超过大小限制不入库", func(t *testing.T) {
		mailbox := &fakeMailbox{messages: map[uint32]string{
			1: rawMail("To: abc@x.io\r\n", string(bytes.Repeat([]byte("a"), 512))),
		}}
		w, store := newWorker(t, mailbox, nil, 128)

		stored, err := w.Poll(context.Background())
		require.NoError(t, err)
		assert.Zero(t, stored)
		assert.Empty(t, inbox(t, store, "abc@x.io"))
	})

	t.Run("登录失败返回错误", func(t *testing.T) {
		mailbox := &fakeMailbox{loginErr: errors.New("bad credentials")}
		w, _ := newWorker(t, mailbox, nil, 0)

		_, err := w.Poll(context.Background())
		assert.ErrorContains(t, err, "failed to login")
		assert.True(t, mailbox.loggedOut)
	})
}

func TestWorker_StartStops(t *testing.T) {
	mailbox := &fakeMailbox{messages: map[uint32]string{}}
	w, _ := newWorker(t, mailbox, nil, 0)
	w.cfg.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
