package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 将相关环境变量置空，viper 默认把空值视为未设置
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"TEMPMAIL_SERVER_HOST",
		"TEMPMAIL_SERVER_PORT",
		"TEMPMAIL_SMTP_BIND_ADDR",
		"TEMPMAIL_SMTP_DOMAIN",
		"TEMPMAIL_SMTP_ACCEPTED_DOMAINS",
		"TEMPMAIL_CORS_ALLOWED_ORIGINS",
		"TEMPMAIL_LOG_LEVEL",
		"TEMPMAIL_LOG_DEVELOPMENT",
		"TEMPMAIL_DATABASE_TYPE",
		"TEMPMAIL_DATABASE_DSN",
		"TEMPMAIL_DATABASE_CONN_MAX_LIFETIME",
		"TEMPMAIL_DOMAINS_FALLBACK",
		"TEMPMAIL_DOMAINS_CLOUDFLARE_API_TOKEN",
		"TEMPMAIL_DOMAINS_CLOUDFLARE_BASE_URL",
		"TEMPMAIL_DOMAINS_TIMEOUT",
		"TEMPMAIL_RETENTION_MAX_AGE",
		"TEMPMAIL_RETENTION_INTERVAL",
		"TEMPMAIL_RATELIMIT_GENERATE_PER_MINUTE",
		"TEMPMAIL_REDIS_ADDRESS",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
		assert.Equal(t, ":25", cfg.SMTP.BindAddr)
		assert.Empty(t, cfg.SMTP.AcceptedDomains)
		assert.Equal(t, int64(10*1024*1024), cfg.SMTP.MaxMessageBytes)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Equal(t, "memory", cfg.Database.Type)
		assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
		assert.Equal(t, "example.com", cfg.Domains.Fallback)
		assert.Empty(t, cfg.Domains.CloudflareAPIToken)
		assert.Equal(t, "https://api.cloudflare.com/client/v4", cfg.Domains.CloudflareBaseURL)
		assert.Equal(t, 30*time.Second, cfg.Domains.Timeout)
		assert.Equal(t, 30*24*time.Hour, cfg.Retention.MaxAge)
		assert.Equal(t, time.Hour, cfg.Retention.Interval)
		assert.Equal(t, 0, cfg.RateLimit.GeneratePerMinute)
		assert.Empty(t, cfg.Redis.Address)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_SERVER_PORT", "9090")
		t.Setenv("TEMPMAIL_SMTP_ACCEPTED_DOMAINS", "Mail.Example.com, test.dev")
		t.Setenv("TEMPMAIL_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
		t.Setenv("TEMPMAIL_DATABASE_TYPE", "SQLite")
		t.Setenv("TEMPMAIL_DOMAINS_FALLBACK", "mail.test")
		t.Setenv("TEMPMAIL_DOMAINS_CLOUDFLARE_API_TOKEN", "cf-token")
		t.Setenv("TEMPMAIL_DOMAINS_CLOUDFLARE_BASE_URL", "http://127.0.0.1:9999/v4/")
		t.Setenv("TEMPMAIL_RETENTION_MAX_AGE", "48h")
		t.Setenv("TEMPMAIL_RATELIMIT_GENERATE_PER_MINUTE", "30")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, []string{"mail.example.com", "test.dev"}, cfg.SMTP.AcceptedDomains)
		assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "sqlite", cfg.Database.Type)
		assert.Equal(t, "./data/tempmail.db", cfg.Database.DSN)
		assert.Equal(t, "mail.test", cfg.Domains.Fallback)
		assert.Equal(t, "cf-token", cfg.Domains.CloudflareAPIToken)
		assert.Equal(t, "http://127.0.0.1:9999/v4", cfg.Domains.CloudflareBaseURL)
		assert.Equal(t, 48*time.Hour, cfg.Retention.MaxAge)
		assert.Equal(t, 30, cfg.RateLimit.GeneratePerMinute)
	})

	t.Run("不支持的数据库类型失败", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_DATABASE_TYPE", "oracle")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "unsupported database.type")
	})

	t.Run("远程数据库缺少DSN失败", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_DATABASE_TYPE", "postgres")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "database.dsn is required")
	})

	t.Run("无效的保留时间失败", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_RETENTION_MAX_AGE", "thirty-days")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid retention.max_age")
	})

	t.Run("无效的上游超时失败", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_DOMAINS_TIMEOUT", "soon")

		_, err := Load()
		assert.ErrorContains(t, err, "invalid domains.timeout")
	})
}

func TestParseDomains(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "单个域名", input: "temp.mail", expected: []string{"temp.mail"}},
		{name: "带空格的域名", input: " temp.mail , test.com ", expected: []string{"temp.mail", "test.com"}},
		{name: "大写域名转小写", input: "TEMP.MAIL,Test.Com", expected: []string{"temp.mail", "test.com"}},
		{name: "空字符串", input: "", expected: []string{}},
		{name: "混合空值", input: "temp.mail,,test.com,", expected: []string{"temp.mail", "test.com"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseDomains(tc.input))
		})
	}
}

func TestParseList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "多个项目", input: "item1,item2,item3", expected: []string{"item1", "item2", "item3"}},
		{name: "保留大小写", input: "http://A.test", expected: []string{"http://A.test"}},
		{name: "只有逗号", input: ",,,", expected: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseList(tc.input))
		})
	}
}
