package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	checkTimeout      = 5 * time.Second
	maxGoroutineCount = 10000
)

// Pinger 是可以被探活的依赖，存储和 Redis 都满足
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 把普通函数适配成 Pinger
type PingFunc func(ctx context.Context) error

// Ping 实现 Pinger
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthChecker 健康检查器
//
// 存活检查只看进程自身，就绪检查会访问存储和 Redis。
type HealthChecker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器，registry 不为 nil 时把检查结果导出为指标
func NewHealthChecker(registry prometheus.Registerer, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}

	var handler healthcheck.Handler
	if registry != nil {
		handler = healthcheck.NewMetricsHandler(registry, "tempmail")
	} else {
		handler = healthcheck.NewHandler()
	}

	handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutineCount))

	return &HealthChecker{
		health: handler,
		logger: logger,
	}
}

// AddDependency 添加一个就绪检查
func (hc *HealthChecker) AddDependency(name string, dep Pinger) {
	hc.health.AddReadinessCheck(name, healthcheck.Timeout(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if err := dep.Ping(ctx); err != nil {
			hc.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			return err
		}
		return nil
	}, checkTimeout))
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// Handler 返回健康检查处理器，路径为 /live 和 /ready
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}
