package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/worker/internal/storage/memory"
)

func TestHealthChecker(t *testing.T) {
	t.Run("存储正常时就绪", func(t *testing.T) {
		hc := NewHealthChecker(nil, nil)
		store := memory.NewStore()
		hc.AddDependency("store", PingFunc(store.Health))

		rec := httptest.NewRecorder()
		hc.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("依赖失败时未就绪但仍存活", func(t *testing.T) {
		hc := NewHealthChecker(nil, nil)
		hc.AddDependency("redis", PingFunc(func(context.Context) error {
			return errors.New("connection refused")
		}))

		rec := httptest.NewRecorder()
		hc.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/health/ready?full=1", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")

		rec = httptest.NewRecorder()
		hc.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("导出检查结果指标", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		hc := NewHealthChecker(registry, nil)
		hc.AddDependency("store", PingFunc(func(context.Context) error { return nil }))

		rec := httptest.NewRecorder()
		hc.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		families, err := registry.Gather()
		require.NoError(t, err)
		require.NotEmpty(t, families)
		assert.True(t, strings.HasSuffix(families[0].GetName(), "healthcheck_status"))
		assert.Len(t, families[0].GetMetric(), 2)
	})
}
