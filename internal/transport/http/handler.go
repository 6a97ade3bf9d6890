package httptransport

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/worker/internal/domain"
	"tempmail/worker/internal/service"
)

// Banner 是根路径返回的文本
const Banner = "Temp Email Worker API is Running 🚀"

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	addresses *service.AddressService
	inbox     *service.InboxService
	stats     *service.StatsService
	domains   *service.DomainService
	logger    *zap.Logger
}

type domainsErrorResponse struct {
	Domains []string `json:"domains"`
	Error   string   `json:"error"`
}

type statsResponse struct {
	TotalEmails int64 `json:"total_emails"`
}

type inboxResponse struct {
	Emails []domain.MessageSummary `json:"emails"`
}

type deleteResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) index(c *gin.Context) {
	c.String(http.StatusOK, Banner)
}

// listDomains GET /api/domains
func (h *Handler) listDomains(c *gin.Context) {
	list, err := h.domains.List(c.Request.Context())
	if err != nil {
		msg := err.Error()
		if errors.Is(err, domain.ErrUpstream) {
			msg = MsgFetchDomainsFailed
		}
		c.JSON(http.StatusInternalServerError, domainsErrorResponse{
			Domains: []string{},
			Error:   msg,
		})
		return
	}
	c.JSON(http.StatusOK, list)
}

// getStats GET /api/stats，统计失败时返回 0
func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, statsResponse{
		TotalEmails: h.stats.TotalAddresses(c.Request.Context()),
	})
}

// generate POST /api/generate
//
// 请求体缺失或不是合法 JSON 时按两个字段都为空处理。
func (h *Handler) generate(c *gin.Context) {
	var input service.GenerateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		input = service.GenerateInput{}
	}

	c.JSON(http.StatusOK, h.addresses.Generate(c.Request.Context(), input))
}

// listInbox GET /api/inbox/:address?search=&limit=
func (h *Handler) listInbox(c *gin.Context) {
	query := domain.InboxQuery{
		Address: c.Param("address"),
		Search:  c.Query("search"),
		Limit:   parseLimit(c.Query("limit")),
	}

	emails, err := h.inbox.List(c.Request.Context(), query)
	if err != nil {
		h.logger.Error("failed to list inbox",
			zap.String("address", query.Address),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err),
		)
		InternalError(c, MsgFetchInboxFailed)
		return
	}

	c.JSON(http.StatusOK, inboxResponse{Emails: emails})
}

// getMessage GET /api/message/:id
func (h *Handler) getMessage(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		NotFound(c)
		return
	}

	message, err := h.inbox.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			NotFound(c)
			return
		}
		h.logger.Error("failed to get message", zap.Uint64("id", id), zap.Error(err))
		InternalError(c, MsgFetchMessageFailed)
		return
	}

	c.JSON(http.StatusOK, message)
}

// deleteMessage DELETE /api/message/:id
//
// 不区分"不存在"和"已删除"，只有存储层报错时返回 500。
func (h *Handler) deleteMessage(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusOK, deleteResponse{Success: true})
		return
	}

	if err := h.inbox.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("failed to delete message", zap.Uint64("id", id), zap.Error(err))
		InternalError(c, MsgDeleteFailed)
		return
	}

	c.JSON(http.StatusOK, deleteResponse{Success: true})
}

// parseLimit 解析 limit 参数，非法值交给 InboxQuery 使用默认值
func parseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return limit
}

func parseID(raw string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
