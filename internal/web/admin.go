package web

import (
	"errors"
	"net/http"
	"time"

	"gitee.com/flycash/wepush/internal/domain"
	"gitee.com/flycash/wepush/internal/errs"
	"gitee.com/flycash/wepush/internal/repository"
	"gitee.com/flycash/wepush/internal/service/token"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
)

const dateLayout = "2006-01-02"

// AdminHandler 管理端路由：渠道、应用、绑定用户、消息历史的薄校验加仓储读写
type AdminHandler struct {
	channels   repository.ChannelRepository
	apps       repository.AppRepository
	recipients repository.RecipientRepository
	history    repository.HistoryRepository
	bindCodes  repository.BindCodeRepository
	statuses   repository.TokenStatusRepository
	tokens     *token.Cache
	logger     *elog.Component
}

func NewAdminHandler(
	channels repository.ChannelRepository,
	apps repository.AppRepository,
	recipients repository.RecipientRepository,
	history repository.HistoryRepository,
	bindCodes repository.BindCodeRepository,
	statuses repository.TokenStatusRepository,
	tokens *token.Cache,
) *AdminHandler {
	return &AdminHandler{
		channels:   channels,
		apps:       apps,
		recipients: recipients,
		history:    history,
		bindCodes:  bindCodes,
		statuses:   statuses,
		tokens:     tokens,
		logger:     elog.DefaultLogger,
	}
}

func (h *AdminHandler) PrivateRoutes(engine *gin.Engine) {
	api := engine.Group("/api")

	api.POST("/channels", h.CreateChannel)
	api.GET("/channels", h.ListChannels)
	api.GET("/channels/:id", h.GetChannel)
	api.PUT("/channels/:id", h.UpdateChannel)
	api.DELETE("/channels/:id", h.DeleteChannel)
	api.GET("/channels/:id/token", h.GetTokenStatus)
	api.POST("/channels/:id/token/refresh", h.RefreshToken)

	api.POST("/apps", h.CreateApp)
	api.GET("/apps", h.ListApps)
	api.GET("/apps/:id", h.GetApp)
	api.PUT("/apps/:id", h.UpdateApp)
	api.DELETE("/apps/:id", h.DeleteApp)

	api.GET("/apps/:id/openids", h.ListRecipients)
	api.POST("/apps/:id/openids", h.CreateRecipient)
	api.DELETE("/apps/:id/openids/:oid", h.DeleteRecipient)
	api.POST("/apps/:id/bindcode", h.CreateBindCode)
	api.POST("/bind", h.Bind)

	api.GET("/messages", h.ListMessages)
	api.GET("/messages/stats", h.MessageStats)
	api.GET("/messages/:id", h.GetMessage)
	api.DELETE("/messages/:id", h.DeleteMessage)
	api.POST("/messages/cleanup", h.CleanupMessages)

	api.GET("/token-status", h.ListTokenStatuses)
}

// ==================== 渠道 ====================

func (h *AdminHandler) CreateChannel(c *gin.Context) {
	var channel domain.Channel
	if err := c.ShouldBindJSON(&channel); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "请求体不是合法的 JSON")
		return
	}

	created, err := h.channels.Create(c.Request.Context(), channel)
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, created)
}

func (h *AdminHandler) ListChannels(c *gin.Context) {
	channels, err := h.channels.List(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, channels)
}

func (h *AdminHandler) GetChannel(c *gin.Context) {
	channel, err := h.channels.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, channel)
}

func (h *AdminHandler) UpdateChannel(c *gin.Context) {
	var channel domain.Channel
	if err := c.ShouldBindJSON(&channel); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "请求体不是合法的 JSON")
		return
	}
	channel.ID = c.Param("id")

	updated, err := h.channels.Update(c.Request.Context(), channel)
	if err != nil {
		h.renderError(c, err)
		return
	}
	// 凭证可能已变更，旧令牌立即作废
	h.tokens.Invalidate(c.Request.Context(), updated)
	ok(c, updated)
}

func (h *AdminHandler) DeleteChannel(c *gin.Context) {
	if err := h.channels.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, nil)
}

func (h *AdminHandler) GetTokenStatus(c *gin.Context) {
	status, err := h.statuses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, status)
}

// RefreshToken 强制刷新某渠道的访问令牌
func (h *AdminHandler) RefreshToken(c *gin.Context) {
	channel, err := h.channels.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	if _, err := h.tokens.AccessToken(c.Request.Context(), channel, true); err != nil {
		h.renderError(c, err)
		return
	}

	status, err := h.statuses.Get(c.Request.Context(), channel.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, status)
}

func (h *AdminHandler) ListTokenStatuses(c *gin.Context) {
	statuses, err := h.statuses.List(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, statuses)
}

// ==================== 应用 ====================

func (h *AdminHandler) CreateApp(c *gin.Context) {
	var app domain.App
	if err := c.ShouldBindJSON(&app); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "请求体不是合法的 JSON")
		return
	}

	// 渠道必须已存在
	if _, err := h.channels.GetByID(c.Request.Context(), app.ChannelID); err != nil {
		h.renderError(c, err)
		return
	}

	created, err := h.apps.Create(c.Request.Context(), app)
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, created)
}

func (h *AdminHandler) ListApps(c *gin.Context) {
	apps, err := h.apps.List(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, apps)
}

func (h *AdminHandler) GetApp(c *gin.Context) {
	app, err := h.apps.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, app)
}

func (h *AdminHandler) UpdateApp(c *gin.Context) {
	var app domain.App
	if err := c.ShouldBindJSON(&app); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "请求体不是合法的 JSON")
		return
	}
	app.ID = c.Param("id")

	updated, err := h.apps.Update(c.Request.Context(), app)
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, updated)
}

func (h *AdminHandler) DeleteApp(c *gin.Context) {
	if err := h.apps.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, nil)
}

// ==================== 绑定用户 ====================

func (h *AdminHandler) ListRecipients(c *gin.Context) {
	recipients, err := h.recipients.ListByApp(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, recipients)
}

func (h *AdminHandler) CreateRecipient(c *gin.Context) {
	var recipient domain.Recipient
	if err := c.ShouldBindJSON(&recipient); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "请求体不是合法的 JSON")
		return
	}
	recipient.AppID = c.Param("id")

	if _, err := h.apps.GetByID(c.Request.Context(), recipient.AppID); err != nil {
		h.renderError(c, err)
		return
	}

	created, err := h.recipients.Create(c.Request.Context(), recipient)
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, created)
}

// DeleteRecipient 按 OpenID 解绑用户
func (h *AdminHandler) DeleteRecipient(c *gin.Context) {
	appID := c.Param("id")
	openID := c.Param("oid")

	recipients, err := h.recipients.ListByApp(c.Request.Context(), appID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	for i := range recipients {
		if recipients[i].OpenID == openID {
			if err := h.recipients.Delete(c.Request.Context(), appID, recipients[i].ID); err != nil {
				h.renderError(c, err)
				return
			}
			ok(c, nil)
			return
		}
	}
	fail(c, http.StatusNotFound, CodeNotFound, errs.ErrRecipientNotFound.Error())
}

// CreateBindCode 为应用生成一个短期有效的绑定码
func (h *AdminHandler) CreateBindCode(c *gin.Context) {
	appID := c.Param("id")
	if _, err := h.apps.GetByID(c.Request.Context(), appID); err != nil {
		h.renderError(c, err)
		return
	}

	code, err := h.bindCodes.Create(c.Request.Context(), appID, repository.DefaultBindCodeTTL)
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, gin.H{
		"code":      code,
		"expiresIn": int(repository.DefaultBindCodeTTL.Seconds()),
	})
}

type bindRequest struct {
	Code     string `json:"code"`
	OpenID   string `json:"openId"`
	Nickname string `json:"nickname"`
}

// Bind 用户凭绑定码完成与应用的绑定
func (h *AdminHandler) Bind(c *gin.Context) {
	var req bindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "请求体不是合法的 JSON")
		return
	}
	if req.Code == "" || req.OpenID == "" {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "code 和 openId 不能为空")
		return
	}

	appID, err := h.bindCodes.Consume(c.Request.Context(), req.Code)
	if err != nil {
		h.renderError(c, err)
		return
	}

	created, err := h.recipients.Create(c.Request.Context(), domain.Recipient{
		AppID:    appID,
		OpenID:   req.OpenID,
		Nickname: req.Nickname,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, created)
}

// ==================== 消息历史 ====================

func (h *AdminHandler) ListMessages(c *gin.Context) {
	var query struct {
		Page      int    `form:"page,default=1"`
		PageSize  int    `form:"pageSize,default=20"`
		ChannelID string `form:"channelId"`
		AppID     string `form:"appId"`
		OpenID    string `form:"openId"`
		Direction string `form:"direction"`
		StartDate string `form:"startDate"`
		EndDate   string `form:"endDate"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "查询参数不合法")
		return
	}

	filter := repository.ListFilter{
		ChannelID: query.ChannelID,
		AppID:     query.AppID,
		OpenID:    query.OpenID,
		Direction: domain.Direction(query.Direction),
	}
	if query.StartDate != "" {
		start, err := time.ParseInLocation(dateLayout, query.StartDate, time.Local)
		if err != nil {
			fail(c, http.StatusBadRequest, CodeInvalidParam, "startDate 格式应为 "+dateLayout)
			return
		}
		filter.StartTime = start
	}
	if query.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, query.EndDate, time.Local)
		if err != nil {
			fail(c, http.StatusBadRequest, CodeInvalidParam, "endDate 格式应为 "+dateLayout)
			return
		}
		// 结束日期取当天末尾
		filter.EndTime = end.Add(24*time.Hour - time.Nanosecond)
	}

	page, err := h.history.List(c.Request.Context(), filter, query.Page, query.PageSize)
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, page)
}

func (h *AdminHandler) GetMessage(c *gin.Context) {
	msg, err := h.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, msg)
}

func (h *AdminHandler) DeleteMessage(c *gin.Context) {
	if err := h.history.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, nil)
}

func (h *AdminHandler) CleanupMessages(c *gin.Context) {
	var req struct {
		RetentionDays int `json:"retentionDays"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "请求体不是合法的 JSON")
		return
	}

	deleted, err := h.history.Cleanup(c.Request.Context(), req.RetentionDays)
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, gin.H{"deleted": deleted})
}

func (h *AdminHandler) MessageStats(c *gin.Context) {
	stats, err := h.history.Stats(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	ok(c, stats)
}

// renderError 把领域错误映射到固定的 HTTP 状态段
func (h *AdminHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidParameter), errors.Is(err, errs.ErrOpenIDDuplicate), errors.Is(err, errs.ErrBindCodeInvalid):
		fail(c, http.StatusBadRequest, CodeInvalidParam, err.Error())
	case errors.Is(err, errs.ErrAppNotFound),
		errors.Is(err, errs.ErrChannelNotFound),
		errors.Is(err, errs.ErrRecipientNotFound),
		errors.Is(err, errs.ErrMessageNotFound),
		errors.Is(err, errs.ErrTokenStatusNotFound):
		fail(c, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		h.logger.Error("管理接口内部错误", elog.FieldErr(err))
		fail(c, http.StatusInternalServerError, CodeInternal, "内部错误")
	}
}
