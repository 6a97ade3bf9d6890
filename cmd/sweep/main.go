package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"tempmail/worker/internal/bootstrap"
	"tempmail/worker/internal/config"
	"tempmail/worker/internal/service"
)

// main 执行一次保留期清理后退出，适合由 cron 调度。
func main() {
	maxAge := flag.Duration("max-age", 0, "覆盖 retention.max_age，例如 168h")
	timeout := flag.Duration("timeout", 5*time.Minute, "清理超时时间")
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

	age := cfg.Retention.MaxAge
	if *maxAge > 0 {
		age = *maxAge
	}

	store, err := bootstrap.OpenStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	deleted, err := service.NewRetentionService(store, age, log, nil).Sweep(ctx)
	if err != nil {
		log.Error("retention sweep failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("deleted %d messages older than %s\n", deleted, age)
}
