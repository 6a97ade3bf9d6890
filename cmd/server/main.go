package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempmail/worker/internal/bootstrap"
	"tempmail/worker/internal/config"
	"tempmail/worker/internal/imapworker"
	"tempmail/worker/internal/monitoring"
	"tempmail/worker/internal/service"
	"tempmail/worker/internal/smtp"
	httptransport "tempmail/worker/internal/transport/http"
	"tempmail/worker/internal/websocket"
)

// main 启动同时包含 HTTP API、SMTP 收信和保留期清理的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting tempmail server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("database_type", cfg.Database.Type),
	)

	store, err := bootstrap.OpenStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close storage", zap.Error(err))
		}
	}()

	metrics := monitoring.NewMetrics()

	eventBus, redisClient, err := bootstrap.OpenEventBus(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	healthChecker := bootstrap.NewHealthChecker(metrics, store, redisClient, log)
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log, metrics)

	// 配置了 Redis 时新邮件事件经由频道转发，多个 API 实例都能收到
	var notifier service.Notifier = wsHub
	if eventBus != nil {
		notifier = eventBus
	}

	ingestService := service.NewIngestService(store, log, metrics,
		service.WithNotifier(notifier),
		service.WithMaxBytes(cfg.SMTP.MaxMessageBytes),
	)
	retentionService := service.NewRetentionService(store, cfg.Retention.MaxAge, log, metrics)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		AddressService: service.NewAddressService(store, cfg.Domains.Fallback, log, metrics),
		InboxService:   service.NewInboxService(store, log, metrics),
		StatsService:   service.NewStatsService(store, log),
		DomainService:  service.NewDomainService(bootstrap.ZoneLister(cfg), cfg.Domains.Fallback, log, metrics),
		WebSocketHub:   wsHub,
		Metrics:        metrics,
		HealthChecker:  healthChecker,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	smtpBackend := smtp.NewBackend(ingestService, log.Named("smtp"), metrics, smtp.Options{
		AcceptedDomains: cfg.SMTP.AcceptedDomains,
		Limiter:         smtp.NewConnectionLimiter(cfg.SMTP.MaxConns, cfg.SMTP.ConnRate),
	})
	smtpServer := gosmtp.NewServer(smtpBackend)
	smtpServer.Addr = cfg.SMTP.BindAddr
	smtpServer.Domain = cfg.SMTP.Domain
	smtpServer.ReadTimeout = 10 * time.Second
	smtpServer.WriteTimeout = 10 * time.Second
	smtpServer.MaxMessageBytes = cfg.SMTP.MaxMessageBytes
	smtpServer.MaxRecipients = cfg.SMTP.MaxRecipients

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting SMTP server",
			zap.String("address", cfg.SMTP.BindAddr),
			zap.String("domain", cfg.SMTP.Domain),
			zap.Strings("accepted_domains", cfg.SMTP.AcceptedDomains),
		)
		if err := smtpServer.ListenAndServe(); err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
			log.Error("SMTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 保留期清理 goroutine
	group.Go(func() error {
		return retentionService.Run(groupCtx, cfg.Retention.Interval)
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// Redis 事件转发 goroutine
	if eventBus != nil {
		group.Go(func() error {
			return eventBus.Relay(groupCtx, wsHub.NotifyNewMail)
		})
	}

	// IMAP 拉取 goroutine
	if cfg.IMAP.Host != "" {
		worker := imapworker.New(cfg.IMAP, ingestService, cfg.SMTP.AcceptedDomains, cfg.SMTP.MaxMessageBytes, log.Named("imap"))
		group.Go(func() error {
			worker.Start(groupCtx)
			return nil
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if err := smtpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("SMTP server shutdown warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
