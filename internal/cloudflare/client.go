package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tempmail/worker/internal/domain"
)

// DefaultBaseURL Cloudflare API v4 地址
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// Config Cloudflare 客户端配置
type Config struct {
	APIToken  string
	AccountID string // 可选，只列出该账号下的 zone
	BaseURL   string
	Timeout   time.Duration
}

// Client 查询账号下处于 active 状态的 zone 名称
type Client struct {
	token      string
	accountID  string
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建 Cloudflare 客户端
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		token:      cfg.APIToken,
		accountID:  cfg.AccountID,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type zonesResponse struct {
	Success bool `json:"success"`
	Result  []struct {
		Name string `json:"name"`
	} `json:"result"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ListZones 返回 active zone 的名称，顺序与上游一致
//
// 只读取第一页（最多 50 个）。所有失败都包装 domain.ErrUpstream。
func (c *Client) ListZones(ctx context.Context) ([]string, error) {
	query := url.Values{}
	query.Set("status", "active")
	query.Set("per_page", "50")
	if c.accountID != "" {
		query.Set("account.id", c.accountID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/zones?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload zonesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrUpstream, err)
	}
	if !payload.Success {
		msg := "request unsuccessful"
		if len(payload.Errors) > 0 {
			msg = payload.Errors[0].Message
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstream, msg)
	}

	names := make([]string, 0, len(payload.Result))
	for _, zone := range payload.Result {
		names = append(names, zone.Name)
	}
	return names, nil
}
