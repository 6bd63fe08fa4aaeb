package wechat

import (
	"errors"
	"fmt"
)

// 微信接口错误码
const (
	CodeSystemBusy         int64 = -1
	CodeInvalidCredential  int64 = 40001
	CodeInvalidOpenID      int64 = 40003
	CodeInvalidTemplateID  int64 = 40037
	CodeAccessTokenExpired int64 = 42001
	CodeUserNotSubscribed  int64 = 43004
	CodeOutOfResponseTime  int64 = 45015
	CodeAPIUnauthorized    int64 = 48001
)

// errcodeText 常见错误码到可读信息的静态映射
var errcodeText = map[int64]string{
	CodeSystemBusy:         "系统繁忙，请稍后重试",
	CodeInvalidCredential:  "AppSecret 错误或 access_token 无效",
	40002:                  "凭证类型不合法",
	CodeInvalidOpenID:      "OpenID 不合法",
	40013:                  "AppID 不合法",
	CodeInvalidTemplateID:  "模板 ID 不合法",
	41001:                  "缺少 access_token 参数",
	CodeAccessTokenExpired: "access_token 已过期",
	CodeUserNotSubscribed:  "用户未关注公众号",
	45009:                  "接口调用超过限制",
	CodeOutOfResponseTime:  "回复时间超过限制（48 小时内未互动）",
	45047:                  "客服消息发送条数超过上限",
	CodeAPIUnauthorized:    "API 功能未授权，请确认公众号已获得该接口权限",
	50001:                  "用户未授权该 API",
}

// CodeMessage 将错误码翻译成可读信息，未知错误码回退为通用提示
func CodeMessage(code int64, raw string) string {
	if msg, ok := errcodeText[code]; ok {
		return msg
	}
	if raw != "" {
		return fmt.Sprintf("API error: %d (%s)", code, raw)
	}
	return fmt.Sprintf("API error: %d", code)
}

// APIError 微信接口返回的业务错误（errcode 非 0）
type APIError struct {
	Code int64
	Msg  string
}

func (e *APIError) Error() string {
	return CodeMessage(e.Code, e.Msg)
}

// IsTokenExpired 判断错误是否为凭证失效类错误，命中时调用方应强制刷新令牌后重试一次
func IsTokenExpired(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	return apiErr.Code == CodeInvalidCredential || apiErr.Code == CodeAccessTokenExpired
}

// AsAPIError 提取错误链上的 APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
