package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/wepush/internal/errs"
)

// Recipient 绑定到应用上的一个可触达用户（OpenID 记录）
// OpenID 在同一应用内唯一
type Recipient struct {
	ID        string    `json:"id"`
	AppID     string    `json:"appId"`
	OpenID    string    `json:"openId"`
	Nickname  string    `json:"nickname,omitempty"`
	Remark    string    `json:"remark,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *Recipient) Validate() error {
	if r.AppID == "" {
		return fmt.Errorf("%w: AppID 为空", errs.ErrInvalidParameter)
	}

	if r.OpenID == "" {
		return fmt.Errorf("%w: OpenID 为空", errs.ErrInvalidParameter)
	}

	return nil
}
