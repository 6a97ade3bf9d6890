package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tempmail/worker/internal/bootstrap"
	"tempmail/worker/internal/config"
	"tempmail/worker/internal/mboximport"
	"tempmail/worker/internal/service"
)

// main 把 mbox 文件导入收件箱，用于迁移历史邮件或本地调试。
func main() {
	file := flag.String("file", "-", "mbox 文件路径，- 表示标准输入")
	to := flag.String("to", "", "收件地址，留空时按每封邮件的投递头确定")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Type == "memory" {
		log.Warn("database.type is memory, imported messages will be lost on exit")
	}

	store, err := bootstrap.OpenStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	var input io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal("failed to open mbox file", zap.String("file", *file), zap.Error(err))
		}
		defer f.Close()
		input = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ingest := service.NewIngestService(store, log, nil, service.WithMaxBytes(cfg.SMTP.MaxMessageBytes))
	result, err := mboximport.New(ingest, log).Import(ctx, input, *to)

	log.Info("mbox import finished",
		zap.String("file", *file),
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed),
	)
	if err != nil {
		log.Error("mbox import aborted", zap.Error(err))
		os.Exit(1)
	}
}
