package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/wepush/internal/errs"
)

// PushMode 推送模式
type PushMode string

const (
	// PushModeSingle 单推：只投递给绑定列表中的第一个用户
	PushModeSingle PushMode = "single"
	// PushModeSubscribe 订阅：投递给绑定的所有用户
	PushModeSubscribe PushMode = "subscribe"
)

// MessageType 消息类型
type MessageType string

const (
	// MessageTypeNormal 客服文本消息
	MessageTypeNormal MessageType = "normal"
	// MessageTypeTemplate 模板消息
	MessageTypeTemplate MessageType = "template"
)

// App 应用：一个对外的路由键加投递策略，绑定到一个渠道
type App struct {
	ID          string      `json:"id"`
	Key         string      `json:"key"`
	Name        string      `json:"name"`
	ChannelID   string      `json:"channelId"`
	PushMode    PushMode    `json:"pushMode"`
	MessageType MessageType `json:"messageType"`
	TemplateID  string      `json:"templateId,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (a *App) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: Name 为空", errs.ErrInvalidParameter)
	}

	if a.ChannelID == "" {
		return fmt.Errorf("%w: ChannelID 为空", errs.ErrInvalidParameter)
	}

	if a.PushMode != PushModeSingle && a.PushMode != PushModeSubscribe {
		return fmt.Errorf("%w: PushMode = %q", errs.ErrInvalidParameter, a.PushMode)
	}

	if a.MessageType != MessageTypeNormal && a.MessageType != MessageTypeTemplate {
		return fmt.Errorf("%w: MessageType = %q", errs.ErrInvalidParameter, a.MessageType)
	}

	if a.MessageType == MessageTypeTemplate && a.TemplateID == "" {
		return fmt.Errorf("%w: 模板消息必须指定 TemplateID", errs.ErrInvalidParameter)
	}

	return nil
}
