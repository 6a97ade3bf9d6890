package cloudflare

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/worker/internal/domain"
)

func TestClient_ListZones(t *testing.T) {
	t.Run("返回active zone名称", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/zones", r.URL.Path)
			assert.Equal(t, "active", r.URL.Query().Get("status"))
			assert.Equal(t, "50", r.URL.Query().Get("per_page"))
			assert.Equal(t, "acc-1", r.URL.Query().Get("account.id"))
			assert.Equal(t, "Bearer cf-token", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"result":[{"name":"a.com"},{"name":"b.org"}]}`))
		}))
		defer server.Close()

		client := NewClient(Config{APIToken: "cf-token", AccountID: "acc-1", BaseURL: server.URL + "/"})
		zones, err := client.ListZones(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"a.com", "b.org"}, zones)
	})

	t.Run("空结果返回空切片", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.Query().Get("account.id"))
			_, _ = w.Write([]byte(`{"success":true,"result":[]}`))
		}))
		defer server.Close()

		zones, err := NewClient(Config{APIToken: "t", BaseURL: server.URL}).ListZones(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, zones)
		assert.Empty(t, zones)
	})

	t.Run("非2xx状态返回上游错误", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false}`))
		}))
		defer server.Close()

		_, err := NewClient(Config{APIToken: "bad", BaseURL: server.URL}).ListZones(context.Background())
		assert.ErrorIs(t, err, domain.ErrUpstream)
		assert.Contains(t, err.Error(), "HTTP 403")
	})

	t.Run("success为false返回上游错误", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":9109,"message":"Invalid access token"}]}`))
		}))
		defer server.Close()

		_, err := NewClient(Config{APIToken: "bad", BaseURL: server.URL}).ListZones(context.Background())
		assert.ErrorIs(t, err, domain.ErrUpstream)
		assert.Contains(t, err.Error(), "Invalid access token")
	})

	t.Run("响应无法解析", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer server.Close()

		_, err := NewClient(Config{APIToken: "t", BaseURL: server.URL}).ListZones(context.Background())
		assert.ErrorIs(t, err, domain.ErrUpstream)
	})

	t.Run("超时返回上游错误", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		client := NewClient(Config{APIToken: "t", BaseURL: server.URL, Timeout: 20 * time.Millisecond})
		_, err := client.ListZones(context.Background())
		assert.ErrorIs(t, err, domain.ErrUpstream)
	})
}
