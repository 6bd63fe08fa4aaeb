package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/wepush/internal/errs"
)

// ChannelConfig 渠道凭证配置
// AppID 唯一标识一套凭证，令牌缓存以它为键
type ChannelConfig struct {
	AppID     string `json:"appId"`
	AppSecret string `json:"appSecret"`
	MsgToken  string `json:"msgToken,omitempty"`
}

// Channel 渠道：一个公众号账号的凭证集合
type Channel struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Config    ChannelConfig `json:"config"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (c *Channel) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: Name 为空", errs.ErrInvalidParameter)
	}

	if c.Config.AppID == "" {
		return fmt.Errorf("%w: Config.AppID 为空", errs.ErrInvalidParameter)
	}

	if c.Config.AppSecret == "" {
		return fmt.Errorf("%w: Config.AppSecret 为空", errs.ErrInvalidParameter)
	}

	return nil
}

// CanAuthenticate 判断凭证是否可用于获取访问令牌
func (c *Channel) CanAuthenticate() bool {
	return c.Config.AppID != "" && c.Config.AppSecret != ""
}
