package web

import (
	"net/http"
	"strings"

	"gitee.com/flycash/wepush/internal/domain"
	"gitee.com/flycash/wepush/internal/pkg/ratelimit"
	"gitee.com/flycash/wepush/internal/service/push"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
)

const sendSuffix = ".send"

// WebhookHandler 对外推送入口：GET/POST /{appKey}.send
type WebhookHandler struct {
	pusher  *push.Pusher
	limiter ratelimit.Limiter
	logger  *elog.Component
}

func NewWebhookHandler(pusher *push.Pusher, limiter ratelimit.Limiter) *WebhookHandler {
	return &WebhookHandler{
		pusher:  pusher,
		limiter: limiter,
		logger:  elog.DefaultLogger,
	}
}

func (h *WebhookHandler) PublicRoutes(engine *gin.Engine) {
	engine.GET("/:key", h.Send)
	engine.POST("/:key", h.Send)
	engine.POST("/callback/:channelId", h.Callback)
}

type sendRequest struct {
	Title string `json:"title" form:"title"`
	Desp  string `json:"desp" form:"desp"`
}

// Send 处理一次推送请求，GET 的查询参数和 POST 的 JSON 体产生相同的结果
func (h *WebhookHandler) Send(c *gin.Context) {
	key := c.Param("key")
	if !strings.HasSuffix(key, sendSuffix) {
		fail(c, http.StatusNotFound, CodeNotFound, "not found")
		return
	}
	appKey := strings.TrimSuffix(key, sendSuffix)

	// 限流是推送引擎之外的门禁，引擎本身不感知
	limited, err := h.limiter.Limit(c.Request.Context(), appKey)
	if err != nil {
		// 限流器故障时放行，避免基础设施问题阻断推送
		h.logger.Warn("限流检查失败", elog.String("appKey", appKey), elog.FieldErr(err))
	} else if limited {
		fail(c, http.StatusTooManyRequests, CodeRateLimited, "请求过于频繁")
		return
	}

	var req sendRequest
	if c.Request.Method == http.MethodGet {
		req.Title = c.Query("title")
		req.Desp = c.Query("desp")
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, CodeInvalidParam, "请求体不是合法的 JSON")
			return
		}
	}
	if req.Title == "" {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "title 不能为空")
		return
	}

	result := h.pusher.Push(c.Request.Context(), appKey, req.Title, req.Desp)
	if result.Err != "" {
		h.renderPushError(c, result)
		return
	}

	ok(c, gin.H{
		"pushId":  result.PushID,
		"total":   result.Total,
		"success": result.Success,
		"failed":  result.Failed,
		"results": deliveryResults(result.Results),
	})
}

type callbackRequest struct {
	OpenID  string `json:"openId"`
	MsgType string `json:"msgType"`
	Content string `json:"content"`
}

// Callback 接收渠道回调的入站消息，只做记录不做应答
func (h *WebhookHandler) Callback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "请求体不是合法的 JSON")
		return
	}
	if req.OpenID == "" {
		fail(c, http.StatusBadRequest, CodeInvalidParam, "openId 不能为空")
		return
	}
	if req.MsgType == "" {
		req.MsgType = "text"
	}

	msg, err := h.pusher.RecordInbound(c.Request.Context(), c.Param("channelId"), req.OpenID, req.MsgType, req.Content)
	if err != nil {
		h.logger.Error("记录入站消息失败",
			elog.String("channelId", c.Param("channelId")),
			elog.FieldErr(err),
		)
		fail(c, http.StatusInternalServerError, CodeInternal, "内部错误")
		return
	}
	ok(c, gin.H{"id": msg.ID})
}

func (h *WebhookHandler) renderPushError(c *gin.Context, result domain.PushResult) {
	data := gin.H{"pushId": result.PushID, "results": []any{}}
	switch result.Err {
	case push.ResultErrAppNotFound, push.ResultErrChannelNotFound:
		failWithData(c, http.StatusNotFound, CodeNotFound, result.Err, data)
	case push.ResultErrNoRecipients:
		failWithData(c, http.StatusBadRequest, CodeInvalidParam, result.Err, data)
	default:
		failWithData(c, http.StatusInternalServerError, CodeInternal, result.Err, data)
	}
}

func deliveryResults(results []domain.DeliveryResult) []gin.H {
	out := make([]gin.H, 0, len(results))
	for i := range results {
		item := gin.H{
			"openId":  results[i].OpenID,
			"success": results[i].Success,
		}
		if results[i].MsgID != "" {
			item["msgId"] = results[i].MsgID
		}
		if results[i].Error != "" {
			item["error"] = results[i].Error
		}
		out = append(out, item)
	}
	return out
}
