package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tempmail/worker/internal/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(router http.Handler, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("生成请求ID", func(t *testing.T) {
		rec := perform(router, http.MethodGet, "/", "", nil)
		id := rec.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, rec.Body.String())
	})

	t.Run("沿用客户端请求ID", func(t *testing.T) {
		rec := perform(router, http.MethodGet, "/", "", map[string]string{RequestIDHeader: "req-1"})
		assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
	})
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(RequestID(), RequestLogger(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	perform(router, http.MethodGet, "/ok?x=1", "", nil)
	perform(router, http.MethodGet, "/missing", "", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "request", entries[0].Message)
	assert.Equal(t, "x=1", entries[0].ContextMap()["query"])
	assert.Equal(t, "client error", entries[1].Message)
	assert.NotEmpty(t, entries[1].ContextMap()["request_id"])
}

func TestRecoveryHandler(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	router := gin.New()
	router.Use(RecoveryHandler(zap.New(core), monitoring.NewMetrics()))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	rec := perform(router, http.MethodGet, "/panic", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestBodySizeLimit(t *testing.T) {
	router := gin.New()
	router.Use(BodySizeLimit(8))
	router.POST("/", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("未超过限制", func(t *testing.T) {
		rec := perform(router, http.MethodPost, "/", `{}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("超过限制返回413", func(t *testing.T) {
		rec := perform(router, http.MethodPost, "/", `{"prefix":"very-long"}`, nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestRateLimitByIP(t *testing.T) {
	t.Run("超过配额返回429", func(t *testing.T) {
		router := gin.New()
		router.POST("/api/generate", RateLimitByIP(2, nil, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

		assert.Equal(t, http.StatusOK, perform(router, http.MethodPost, "/api/generate", "", nil).Code)
		assert.Equal(t, http.StatusOK, perform(router, http.MethodPost, "/api/generate", "", nil).Code)

		rec := perform(router, http.MethodPost, "/api/generate", "", nil)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	})

	t.Run("配额为0时不限流", func(t *testing.T) {
		router := gin.New()
		router.POST("/api/generate", RateLimitByIP(0, nil, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

		for i := 0; i < 50; i++ {
			assert.Equal(t, http.StatusOK, perform(router, http.MethodPost, "/api/generate", "", nil).Code)
		}
	})
}

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(1)
	limiter.now = func() time.Time { return now }

	t.Run("不同IP互不影响", func(t *testing.T) {
		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"))
		assert.True(t, limiter.Allow("10.0.0.2"))
	})

	t.Run("一分钟后恢复配额", func(t *testing.T) {
		now = now.Add(time.Minute)
		assert.True(t, limiter.Allow("10.0.0.1"))
	})

	t.Run("清理长时间未出现的IP", func(t *testing.T) {
		now = now.Add(ipLimiterTTL + time.Minute)
		limiter.Allow("10.0.0.3")
		assert.Len(t, limiter.limiters, 1)
	})
}

func TestHTTPMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	router := gin.New()
	router.Use(HTTPMetrics(metrics))
	router.GET("/api/message/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	perform(router, http.MethodGet, "/api/message/1", "", nil)
	perform(router, http.MethodGet, "/nope", "", nil)

	rec := httptest.NewRecorder()
	metrics.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `endpoint="/api/message/:id"`)
	assert.Contains(t, body, `endpoint="unmatched"`)
}
