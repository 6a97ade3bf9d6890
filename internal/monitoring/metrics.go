package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 指标注册在独立的 Registry 上，测试中可以重复创建。
// 所有 Record 方法允许 nil 接收者，未启用监控时直接忽略。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 业务指标
	AddressesGenerated prometheus.Counter
	MessagesIngested   *prometheus.CounterVec
	MessagesDeleted    prometheus.Counter
	RetentionDeleted   prometheus.Counter
	UpstreamErrors     prometheus.Counter

	// 连接指标
	SMTPRejected     prometheus.Counter
	WebSocketClients prometheus.Gauge
	RateLimitBlocks  *prometheus.CounterVec
	PanicsTotal      prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := func(c prometheus.Collector) {
		registry.MustRegister(c)
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		AddressesGenerated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_addresses_generated_total",
				Help: "Total number of generated addresses",
			},
		),
		MessagesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_messages_ingested_total",
				Help: "Total number of inbound messages by ingestion result",
			},
			[]string{"result"},
		),
		MessagesDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_messages_deleted_total",
				Help: "Total number of messages deleted through the API",
			},
		),
		RetentionDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_retention_deleted_total",
				Help: "Total number of messages removed by the retention sweeper",
			},
		),
		UpstreamErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_upstream_errors_total",
				Help: "Total number of failed domain list requests",
			},
		),
		SMTPRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_smtp_connections_rejected_total",
				Help: "Total number of SMTP connections rejected by the limiter",
			},
		),
		WebSocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempmail_websocket_clients",
				Help: "Number of connected websocket clients",
			},
		),
		RateLimitBlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_rate_limit_blocks_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"limit_type"},
		),
		PanicsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}

	factory(collectors.NewGoCollector())
	factory(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory(m.HTTPRequestsTotal)
	factory(m.HTTPRequestDuration)
	factory(m.AddressesGenerated)
	factory(m.MessagesIngested)
	factory(m.MessagesDeleted)
	factory(m.RetentionDeleted)
	factory(m.UpstreamErrors)
	factory(m.SMTPRejected)
	factory(m.WebSocketClients)
	factory(m.RateLimitBlocks)
	factory(m.PanicsTotal)

	return m
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAddressGenerated 记录地址生成
func (m *Metrics) RecordAddressGenerated() {
	if m == nil {
		return
	}
	m.AddressesGenerated.Inc()
}

// RecordMessageIngested 记录一次入库结果，result 为 domain.KindOf 的返回值
func (m *Metrics) RecordMessageIngested(result string) {
	if m == nil {
		return
	}
	m.MessagesIngested.WithLabelValues(result).Inc()
}

// RecordMessageDeleted 记录邮件删除
func (m *Metrics) RecordMessageDeleted() {
	if m == nil {
		return
	}
	m.MessagesDeleted.Inc()
}

// RecordRetentionDeleted 记录清理任务删除的邮件数
func (m *Metrics) RecordRetentionDeleted(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.RetentionDeleted.Add(float64(count))
}

// RecordUpstreamError 记录上游域名接口错误
func (m *Metrics) RecordUpstreamError() {
	if m == nil {
		return
	}
	m.UpstreamErrors.Inc()
}

// RecordSMTPRejected 记录被限流拒绝的 SMTP 连接
func (m *Metrics) RecordSMTPRejected() {
	if m == nil {
		return
	}
	m.SMTPRejected.Inc()
}

// SetWebSocketClients 更新 WebSocket 连接数
func (m *Metrics) SetWebSocketClients(count int) {
	if m == nil {
		return
	}
	m.WebSocketClients.Set(float64(count))
}

// RecordRateLimitBlock 记录限流拒绝
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	if m == nil {
		return
	}
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 /metrics 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
