package domain

import "time"

// CachedToken 缓存的访问令牌，以渠道的 AppID 为键
// 只有 ExpiresAt 晚于当前时间的令牌才可用
type CachedToken struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Valid 判断令牌此刻是否可用
func (t *CachedToken) Valid(now time.Time) bool {
	return t.AccessToken != "" && t.ExpiresAt.After(now)
}

// TokenStatus 每个渠道一份的令牌可观测状态，每次获取尝试（无论成败）都会更新
type TokenStatus struct {
	ChannelID          string     `json:"channelId"`
	Valid              bool       `json:"valid"`
	LastRefreshAt      time.Time  `json:"lastRefreshAt"`
	LastRefreshSuccess bool       `json:"lastRefreshSuccess"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
	Error              string     `json:"error,omitempty"`
	ErrorCode          int64      `json:"errorCode,omitempty"`
}
