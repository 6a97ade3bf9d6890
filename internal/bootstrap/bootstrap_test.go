package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/worker/internal/cloudflare"
	"tempmail/worker/internal/config"
	"tempmail/worker/internal/monitoring"
	"tempmail/worker/internal/storage/memory"
	sqlstore "tempmail/worker/internal/storage/sql"
)

func TestOpenStore(t *testing.T) {
	t.Run("默认使用内存存储", func(t *testing.T) {
		store, err := OpenStore(&config.Config{}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
	})

	t.Run("SQLite 存储", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Database.Type = "sqlite"
		cfg.Database.DSN = filepath.Join(t.TempDir(), "data", "tempmail.db")

		store, err := OpenStore(cfg, zap.NewNop())
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &sqlstore.Store{}, store)
		assert.NoError(t, store.Health(context.Background()))
	})
}

func TestZoneLister(t *testing.T) {
	t.Run("未配置Token时返回nil接口", func(t *testing.T) {
		assert.Nil(t, ZoneLister(&config.Config{}))
	})

	t.Run("配置Token时返回Cloudflare客户端", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Domains.CloudflareAPIToken = "token"
		assert.IsType(t, &cloudflare.Client{}, ZoneLister(cfg))
	})
}

func TestOpenEventBus(t *testing.T) {
	bus, client, err := OpenEventBus(&config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, bus)
	assert.Nil(t, client)
}

func TestNewHealthChecker(t *testing.T) {
	for name, metrics := range map[string]*monitoring.Metrics{
		"带指标": monitoring.NewMetrics(),
		"无指标": nil,
	} {
		t.Run(name, func(t *testing.T) {
			checker := NewHealthChecker(metrics, memory.NewStore(), nil, nil)

			rec := httptest.NewRecorder()
			checker.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}
