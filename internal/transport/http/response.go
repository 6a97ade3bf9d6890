package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorResponse 错误响应，只有一个 error 字段
type errorResponse struct {
	Error string `json:"error"`
}

// 错误消息，保持与前端约定的英文文案
const (
	MsgFetchDomainsFailed = "Failed to fetch domains from Cloudflare"
	MsgFetchInboxFailed   = "Failed to fetch inbox"
	MsgFetchMessageFailed = "Failed to fetch message"
	MsgDeleteFailed       = "Failed to delete message"
)

// Error 返回 {"error": msg}
func Error(c *gin.Context, httpCode int, msg string) {
	c.JSON(httpCode, errorResponse{Error: msg})
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context, msg string) {
	Error(c, http.StatusInternalServerError, msg)
}

// NotFound 返回不带响应体的 404
func NotFound(c *gin.Context) {
	c.Status(http.StatusNotFound)
}
