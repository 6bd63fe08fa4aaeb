package push

import (
	"context"
	"sync"
	"time"

	"gitee.com/flycash/wepush/internal/domain"
	"gitee.com/flycash/wepush/internal/pkg/idgen"
	"gitee.com/flycash/wepush/internal/repository"
	"gitee.com/flycash/wepush/internal/service/token"
	"gitee.com/flycash/wepush/internal/service/wechat"
	"github.com/gotomicro/ego/core/elog"
	"golang.org/x/sync/errgroup"
)

// 路由失败时 PushResult.Err 携带的标记，调用方据此映射 HTTP 状态
const (
	ResultErrAppNotFound     = "App not found"
	ResultErrChannelNotFound = "Channel not found"
	ResultErrNoRecipients    = "No recipients bound"
	ResultErrInternal        = "Internal error"
)

// Pusher 推送引擎：解析路由键、确定目标集合、并发投递并聚合结果、落历史记录
type Pusher struct {
	apps       repository.AppRepository
	channels   repository.ChannelRepository
	recipients repository.RecipientRepository
	history    repository.HistoryRepository
	tokens     *token.Cache
	api        *wechat.Client
	idgen      *idgen.Generator
	logger     *elog.Component
}

func NewPusher(
	apps repository.AppRepository,
	channels repository.ChannelRepository,
	recipients repository.RecipientRepository,
	history repository.HistoryRepository,
	tokens *token.Cache,
	api *wechat.Client,
	gen *idgen.Generator,
) *Pusher {
	return &Pusher{
		apps:       apps,
		channels:   channels,
		recipients: recipients,
		history:    history,
		tokens:     tokens,
		api:        api,
		idgen:      gen,
		logger:     elog.DefaultLogger,
	}
}

// Push 处理一次推送请求。
// 推送 ID 在任何校验之前生成，路由失败的请求在日志里也有可追踪的 ID。
// 路由失败返回零结果加错误标记，不写历史；路由成功后无论投递成败都写一条历史记录。
func (p *Pusher) Push(ctx context.Context, key, title, content string) domain.PushResult {
	pushID := p.idgen.NextID()
	createdAt := time.Now()

	app, err := p.apps.GetByKey(ctx, key)
	if err != nil {
		p.logger.Info("推送路由失败",
			elog.String("pushId", pushID),
			elog.String("key", key),
			elog.FieldErr(err),
		)
		return domain.PushResult{PushID: pushID, Results: []domain.DeliveryResult{}, Err: ResultErrAppNotFound}
	}

	// 并行加载绑定用户和渠道
	var recipients []domain.Recipient
	var channel domain.Channel
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err1 error
		recipients, err1 = p.recipients.ListByApp(egCtx, app.ID)
		return err1
	})
	var channelErr error
	eg.Go(func() error {
		channel, channelErr = p.channels.GetByID(egCtx, app.ChannelID)
		// 渠道缺失单独上报，不中断另一路加载
		return nil
	})
	if err := eg.Wait(); err != nil {
		p.logger.Warn("加载推送依赖失败",
			elog.String("pushId", pushID),
			elog.String("appId", app.ID),
			elog.FieldErr(err),
		)
		return domain.PushResult{PushID: pushID, Results: []domain.DeliveryResult{}, Err: ResultErrInternal}
	}
	if channelErr != nil {
		return domain.PushResult{PushID: pushID, Results: []domain.DeliveryResult{}, Err: ResultErrChannelNotFound}
	}
	if len(recipients) == 0 {
		return domain.PushResult{PushID: pushID, Results: []domain.DeliveryResult{}, Err: ResultErrNoRecipients}
	}

	// 单推只投递列表中的第一个用户（最早绑定者），订阅模式投递全部
	targets := recipients
	if app.PushMode == domain.PushModeSingle {
		targets = recipients[:1]
	}

	// 并发投递：整体延迟取决于最慢的一条而非总和；
	// 单个用户的失败被折算成失败结果，不影响其他用户
	results := make([]domain.DeliveryResult, len(targets))
	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		idx := i
		go func() {
			defer wg.Done()
			results[idx] = p.deliver(ctx, channel, app, targets[idx].OpenID, title, content)
		}()
	}
	wg.Wait()

	success := 0
	for i := range results {
		if results[i].Success {
			success++
		}
	}

	result := domain.PushResult{
		PushID:  pushID,
		Total:   len(targets),
		Success: success,
		Failed:  len(targets) - success,
		Results: results,
	}

	// 推送结果在写历史之前就已确定，历史写入失败不改变返回给调用方的结果
	msg := domain.Message{
		ID:        pushID,
		Direction: domain.DirectionOutbound,
		Type:      string(app.MessageType),
		ChannelID: channel.ID,
		AppID:     app.ID,
		Title:     title,
		Content:   content,
		Results:   results,
		CreatedAt: createdAt,
	}
	if len(targets) == 1 {
		msg.OpenID = targets[0].OpenID
	}
	if err := p.history.Save(ctx, msg); err != nil {
		p.logger.Warn("写入推送历史失败",
			elog.String("pushId", pushID),
			elog.FieldErr(err),
		)
	}

	return result
}

// deliver 向单个用户投递一条消息，按应用的消息类型选择客服消息或模板消息
func (p *Pusher) deliver(ctx context.Context, channel domain.Channel, app domain.App, openID, title, content string) domain.DeliveryResult {
	send := func(accessToken string) (string, error) {
		if app.MessageType == domain.MessageTypeTemplate {
			return p.api.SendTemplateMessage(ctx, accessToken, openID, app.TemplateID, templateData(title, content))
		}
		return p.api.SendCustomMessage(ctx, accessToken, openID, textContent(title, content))
	}

	msgID, err := p.sendWithTokenRefresh(ctx, channel, send)
	if err != nil {
		return domain.DeliveryResult{OpenID: openID, Success: false, Error: err.Error()}
	}
	return domain.DeliveryResult{OpenID: openID, Success: true, MsgID: msgID}
}

// sendWithTokenRefresh 执行一次发送；凭证失效类错误触发一次强制刷新令牌并重试，
// 之后不再重试
func (p *Pusher) sendWithTokenRefresh(ctx context.Context, channel domain.Channel, send func(accessToken string) (string, error)) (string, error) {
	accessToken, err := p.tokens.AccessToken(ctx, channel, false)
	if err != nil {
		return "", err
	}

	msgID, err := send(accessToken)
	if err == nil || !wechat.IsTokenExpired(err) {
		return msgID, err
	}

	accessToken, err = p.tokens.AccessToken(ctx, channel, true)
	if err != nil {
		return "", err
	}
	return send(accessToken)
}

// RecordInbound 记录一条来自微信回调的入站消息
func (p *Pusher) RecordInbound(ctx context.Context, channelID, openID, msgType, content string) (domain.Message, error) {
	msg := domain.Message{
		ID:        p.idgen.NextID(),
		Direction: domain.DirectionInbound,
		Type:      msgType,
		ChannelID: channelID,
		OpenID:    openID,
		Title:     content,
		CreatedAt: time.Now(),
	}
	if err := p.history.Save(ctx, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// textContent 客服文本消息的正文
func textContent(title, content string) string {
	if content == "" {
		return title
	}
	return title + "\n" + content
}

// templateData 模板消息使用固定的字段名
func templateData(title, content string) wechat.TemplateData {
	fields := map[string]string{
		"first":    title,
		"keyword1": content,
		"remark":   "",
	}
	data := make(wechat.TemplateData, len(fields))
	for k, v := range fields {
		data[k] = wechat.TemplateValue{Value: v}
	}
	return data
}
