package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tempmail/worker/internal/bootstrap"
	"tempmail/worker/internal/config"
	"tempmail/worker/internal/monitoring"
	"tempmail/worker/internal/service"
	httptransport "tempmail/worker/internal/transport/http"
	"tempmail/worker/internal/websocket"
)

// main 是 HTTP 服务的程序入口（仅 HTTP API，不含 SMTP）。
//
// 与 cmd/server 共用同一个数据库时，新邮件事件需要通过 Redis 频道转发过来。
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
	log.Info("starting tempmail API server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	store, err := bootstrap.OpenStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	eventBus, redisClient, err := bootstrap.OpenEventBus(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	} else {
		log.Warn("redis not configured, websocket clients will not receive new mail events")
	}

	metrics := monitoring.NewMetrics()
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log, metrics)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		AddressService: service.NewAddressService(store, cfg.Domains.Fallback, log, metrics),
		InboxService:   service.NewInboxService(store, log, metrics),
		StatsService:   service.NewStatsService(store, log),
		DomainService:  service.NewDomainService(bootstrap.ZoneLister(cfg), cfg.Domains.Fallback, log, metrics),
		WebSocketHub:   wsHub,
		Metrics:        metrics,
		HealthChecker:  bootstrap.NewHealthChecker(metrics, store, redisClient, log),
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 启动 WebSocket Hub
	go func() {
		log.Info("starting WebSocket hub")
		wsHub.Run(ctx)
	}()

	if eventBus != nil {
		go func() {
			if err := eventBus.Relay(ctx, wsHub.NotifyNewMail); err != nil {
				log.Error("new mail relay stopped", zap.Error(err))
			}
		}()
	}

	// 启动 HTTP 服务器
	go func() {
		log.Info("API server listening", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server stopped cleanly")
	}
}
