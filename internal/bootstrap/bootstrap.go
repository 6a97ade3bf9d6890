// Package bootstrap 组装各个入口共用的基础组件。
package bootstrap

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tempmail/worker/internal/cloudflare"
	"tempmail/worker/internal/config"
	"tempmail/worker/internal/health"
	"tempmail/worker/internal/logger"
	"tempmail/worker/internal/monitoring"
	"tempmail/worker/internal/service"
	"tempmail/worker/internal/storage"
	"tempmail/worker/internal/storage/memory"
	"tempmail/worker/internal/storage/redis"
	sqlstore "tempmail/worker/internal/storage/sql"
)

// NewLogger 按配置创建日志记录器，同时设置 Gin 模式
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
}

// OpenStore 根据 database.type 打开存储
func OpenStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" || cfg.Database.Type == "memory" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Database.Type, err)
	}

	log.Info("database storage initialized", zap.String("database_type", store.DriverName()))
	return store, nil
}

// ZoneLister 返回上游域名客户端，未配置 Token 时返回 nil
func ZoneLister(cfg *config.Config) service.ZoneLister {
	if cfg.Domains.CloudflareAPIToken == "" {
		return nil
	}
	return cloudflare.NewClient(cloudflare.Config{
		APIToken:  cfg.Domains.CloudflareAPIToken,
		AccountID: cfg.Domains.CloudflareAccountID,
		BaseURL:   cfg.Domains.CloudflareBaseURL,
		Timeout:   cfg.Domains.Timeout,
	})
}

// OpenEventBus 连接 Redis 并创建事件总线，未配置地址时返回 nil
func OpenEventBus(cfg *config.Config, log *zap.Logger) (*redis.EventBus, *redis.Client, error) {
	if cfg.Redis.Address == "" {
		return nil, nil, nil
	}

	client, err := redis.New(cfg.Redis, log)
	if err != nil {
		return nil, nil, err
	}
	return redis.NewEventBus(client, cfg.Redis.Channel), client, nil
}

// NewHealthChecker 创建健康检查器并注册存储和 Redis 的就绪检查
func NewHealthChecker(metrics *monitoring.Metrics, store storage.Store, redisClient *redis.Client, log *zap.Logger) *health.HealthChecker {
	var registerer prometheus.Registerer
	if metrics != nil {
		registerer = metrics.Registry()
	}

	checker := health.NewHealthChecker(registerer, log)
	checker.AddDependency("store", health.PingFunc(store.Health))
	if redisClient != nil {
		checker.AddDependency("redis", redisClient)
	}
	return checker
}
