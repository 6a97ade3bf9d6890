// Package mboximport 把 mbox 归档中的邮件逐封写入收件箱。
package mboximport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-mbox"
	"go.uber.org/zap"

	"tempmail/worker/internal/domain"
)

// Ingester 接收一次投递
type Ingester interface {
	Ingest(ctx context.Context, env domain.Envelope) (*domain.Message, error)
}

// Result 导入统计
type Result struct {
	Imported int
	Failed   int
}

// Importer 顺序读取 mbox 并入库
type Importer struct {
	ingester Ingester
	log      *zap.Logger
}

// New 创建导入器
func New(ingester Ingester, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{ingester: ingester, log: log}
}

// Import 导入 r 中的全部邮件。
//
// to 不为空时所有邮件都投递到该地址，否则按每封邮件的投递头确定收件人。
// 单封邮件失败只计数，mbox 本身损坏时返回错误。
func (im *Importer) Import(ctx context.Context, r io.Reader, to string) (Result, error) {
	var result Result
	reader := mbox.NewReader(r)

	for index := 1; ; index++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		message, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("read mbox message %d: %w", index, err)
		}

		stored, err := im.ingester.Ingest(ctx, domain.Envelope{To: to, Raw: message})
		if err != nil {
			result.Failed++
			im.log.Warn("failed to import message",
				zap.Int("index", index),
				zap.String("kind", string(domain.KindOf(err))),
				zap.Error(err),
			)
			continue
		}

		result.Imported++
		im.log.Debug("message imported",
			zap.Int("index", index),
			zap.Uint64("id", stored.ID),
			zap.String("address", stored.Address),
		)
	}
}
