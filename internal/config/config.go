package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// SMTPConfig 定义 SMTP 收信服务的配置
type SMTPConfig struct {
	BindAddr        string   // SMTP 服务监听地址，格式 "host:port"，默认 ":25"
	Domain          string   // HELO/EHLO 响应中使用的主机名
	AcceptedDomains []string // 接受投递的域名，留空表示全部接受（catch-all）
	MaxMessageBytes int64    // 单封邮件最大字节数，默认 10MB
	MaxRecipients   int      // 单个事务最大收件人数，默认 50
	MaxConns        int      // 最大并发连接数，默认 100
	ConnRate        int      // 每秒新建连接上限，默认 20
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 控制台格式输出
	File        string // 日志文件路径，留空只输出到标准输出
}

// DatabaseConfig 定义数据库连接配置
type DatabaseConfig struct {
	Type            string        // 存储类型: "memory", "sqlite", "postgres", "pgx", "mysql"
	DSN             string        // 数据库连接字符串，sqlite 时为文件路径
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 配置，用于多实例之间转发新邮件事件
type RedisConfig struct {
	Address  string // Redis 地址，留空表示不启用
	Password string // 认证密码
	DB       int    // 数据库编号
	Channel  string // 新邮件事件频道
}

// DomainsConfig 定义可用域名列表的来源
type DomainsConfig struct {
	Fallback            string        // 未配置上游时返回的域名，同时是生成地址的默认域名
	CloudflareAPIToken  string        // Cloudflare API Token，留空则只返回 Fallback
	CloudflareAccountID string        // 可选，按账号过滤 zone
	CloudflareBaseURL   string        // Cloudflare API 地址
	Timeout             time.Duration // 上游请求超时
}

// RetentionConfig 定义邮件保留策略
type RetentionConfig struct {
	MaxAge   time.Duration // 邮件最长保留时间，默认 30 天
	Interval time.Duration // 清理任务执行间隔，默认 1 小时
}

// RateLimitConfig 定义接口限流
type RateLimitConfig struct {
	GeneratePerMinute int // 每个 IP 每分钟可生成地址次数，0 表示不限制
}

// IMAPConfig 定义可选的 IMAP 拉取配置
type IMAPConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	Mailbox      string
	TLS          bool
	PollInterval time.Duration
}

// Config 是系统核心配置的根结构体
type Config struct {
	Server    ServerConfig
	SMTP      SMTPConfig
	CORS      CORSConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Domains   DomainsConfig
	Retention RetentionConfig
	RateLimit RateLimitConfig
	IMAP      IMAPConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: TEMPMAIL_，例如 TEMPMAIL_SERVER_PORT、TEMPMAIL_DOMAINS_CLOUDFLARE_API_TOKEN
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("tempmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("smtp.bind_addr", ":25")
	viper.SetDefault("smtp.domain", "localhost")
	viper.SetDefault("smtp.accepted_domains", "")
	viper.SetDefault("smtp.max_message_bytes", 10*1024*1024)
	viper.SetDefault("smtp.max_recipients", 50)
	viper.SetDefault("smtp.max_conns", 100)
	viper.SetDefault("smtp.conn_rate", 20)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "memory")
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.channel", "tempmail:new_mail")
	viper.SetDefault("domains.fallback", "example.com")
	viper.SetDefault("domains.cloudflare_api_token", "")
	viper.SetDefault("domains.cloudflare_account_id", "")
	viper.SetDefault("domains.cloudflare_base_url", "https://api.cloudflare.com/client/v4")
	viper.SetDefault("domains.timeout", "30s")
	viper.SetDefault("retention.max_age", "720h")
	viper.SetDefault("retention.interval", "1h")
	viper.SetDefault("ratelimit.generate_per_minute", 0)
	viper.SetDefault("imap.host", "")
	viper.SetDefault("imap.port", 993)
	viper.SetDefault("imap.username", "")
	viper.SetDefault("imap.password", "")
	viper.SetDefault("imap.mailbox", "INBOX")
	viper.SetDefault("imap.tls", true)
	viper.SetDefault("imap.poll_interval", "30s")

	dbType := strings.ToLower(strings.TrimSpace(viper.GetString("database.type")))
	switch dbType {
	case "", "memory":
		dbType = "memory"
	case "sqlite", "postgres", "pgx", "mysql":
	default:
		return nil, fmt.Errorf("unsupported database.type: %s", dbType)
	}

	dsn := viper.GetString("database.dsn")
	if dbType == "sqlite" && dsn == "" {
		dsn = "./data/tempmail.db"
	}
	if (dbType == "postgres" || dbType == "pgx" || dbType == "mysql") && dsn == "" {
		return nil, fmt.Errorf("database.dsn is required for database.type %s", dbType)
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	upstreamTimeout, err := time.ParseDuration(viper.GetString("domains.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid domains.timeout: %w", err)
	}

	maxAge, err := time.ParseDuration(viper.GetString("retention.max_age"))
	if err != nil {
		return nil, fmt.Errorf("invalid retention.max_age: %w", err)
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention.max_age must be positive")
	}

	interval, err := time.ParseDuration(viper.GetString("retention.interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid retention.interval: %w", err)
	}
	if interval <= 0 {
		interval = time.Hour
	}

	pollInterval, err := time.ParseDuration(viper.GetString("imap.poll_interval"))
	if err != nil {
		pollInterval = 30 * time.Second
	}

	fallback := strings.TrimSpace(viper.GetString("domains.fallback"))
	if fallback == "" {
		fallback = "example.com"
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	generatePerMinute := viper.GetInt("ratelimit.generate_per_minute")
	if generatePerMinute < 0 {
		generatePerMinute = 0
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		SMTP: SMTPConfig{
			BindAddr:        viper.GetString("smtp.bind_addr"),
			Domain:          viper.GetString("smtp.domain"),
			AcceptedDomains: parseDomains(viper.GetString("smtp.accepted_domains")),
			MaxMessageBytes: viper.GetInt64("smtp.max_message_bytes"),
			MaxRecipients:   viper.GetInt("smtp.max_recipients"),
			MaxConns:        viper.GetInt("smtp.max_conns"),
			ConnRate:        viper.GetInt("smtp.conn_rate"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            dbType,
			DSN:             dsn,
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			Channel:  viper.GetString("redis.channel"),
		},
		Domains: DomainsConfig{
			Fallback:            fallback,
			CloudflareAPIToken:  viper.GetString("domains.cloudflare_api_token"),
			CloudflareAccountID: viper.GetString("domains.cloudflare_account_id"),
			CloudflareBaseURL:   strings.TrimRight(viper.GetString("domains.cloudflare_base_url"), "/"),
			Timeout:             upstreamTimeout,
		},
		Retention: RetentionConfig{
			MaxAge:   maxAge,
			Interval: interval,
		},
		RateLimit: RateLimitConfig{
			GeneratePerMinute: generatePerMinute,
		},
		IMAP: IMAPConfig{
			Host:         viper.GetString("imap.host"),
			Port:         viper.GetInt("imap.port"),
			Username:     viper.GetString("imap.username"),
			Password:     viper.GetString("imap.password"),
			Mailbox:      viper.GetString("imap.mailbox"),
			TLS:          viper.GetBool("imap.tls"),
			PollInterval: pollInterval,
		},
	}

	return cfg, nil
}

// HTTPAddr 返回 HTTP 监听地址
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// parseDomains 将逗号分隔的域名字符串解析为小写域名数组
func parseDomains(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载当前目录或父目录的 .env 文件
//
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
