package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/worker/internal/config"
	"tempmail/worker/internal/health"
	"tempmail/worker/internal/middleware"
	"tempmail/worker/internal/monitoring"
	"tempmail/worker/internal/service"
	"tempmail/worker/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	AddressService *service.AddressService
	InboxService   *service.InboxService
	StatsService   *service.StatsService
	DomainService  *service.DomainService
	WebSocketHub   *websocket.Hub        // 为 nil 时不注册 /api/ws
	Metrics        *monitoring.Metrics   // 为 nil 时不注册 /metrics
	HealthChecker  *health.HealthChecker // 为 nil 时只有 /health
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.RecoveryHandler(logger, deps.Metrics))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.HTTPMetrics(deps.Metrics))
	router.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))
	router.Use(gincors.New(corsConfig(deps.Config.CORS.AllowedOrigins)))

	handler := &Handler{
		addresses: deps.AddressService,
		inbox:     deps.InboxService,
		stats:     deps.StatsService,
		domains:   deps.DomainService,
		logger:    logger,
	}

	router.GET("/", handler.index)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	api := router.Group("/api")
	{
		api.GET("/domains", handler.listDomains)
		api.GET("/stats", handler.getStats)
		api.POST("/generate",
			middleware.RateLimitByIP(deps.Config.RateLimit.GeneratePerMinute, logger, deps.Metrics),
			handler.generate,
		)
		api.GET("/inbox/:address", handler.listInbox)
		api.GET("/message/:id", handler.getMessage)
		api.DELETE("/message/:id", handler.deleteMessage)

		if deps.WebSocketHub != nil {
			api.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}

func corsConfig(allowedOrigins []string) gincors.Config {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	cfg := gincors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			cfg.AllowCredentials = false
			cfg.AllowOrigins = nil
			cfg.AllowAllOrigins = true
			break
		}
	}
	return cfg
}
