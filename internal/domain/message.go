package domain

import "time"

// Direction 消息方向
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DeliveryResult 单个用户的一次投递结果
type DeliveryResult struct {
	OpenID  string `json:"openId"`
	Success bool   `json:"success"`
	MsgID   string `json:"msgId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Message 一次推送（或一条入站消息）的历史记录，写入后不再修改
type Message struct {
	ID        string           `json:"id"`
	Direction Direction        `json:"direction"`
	Type      string           `json:"type"`
	ChannelID string           `json:"channelId,omitempty"`
	AppID     string           `json:"appId,omitempty"`
	OpenID    string           `json:"openId,omitempty"`
	Title     string           `json:"title"`
	Content   string           `json:"content,omitempty"`
	Results   []DeliveryResult `json:"results,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// SuccessCount 统计投递成功的条数
func (m *Message) SuccessCount() int {
	count := 0
	for i := range m.Results {
		if m.Results[i].Success {
			count++
		}
	}
	return count
}

// PushResult 一次推送的聚合结果
// Err 非空表示路由失败（应用不存在、渠道不存在、无绑定用户），此时不写历史记录
type PushResult struct {
	PushID  string           `json:"pushId"`
	Total   int              `json:"total"`
	Success int              `json:"success"`
	Failed  int              `json:"failed"`
	Results []DeliveryResult `json:"results"`
	Err     string           `json:"error,omitempty"`
}
