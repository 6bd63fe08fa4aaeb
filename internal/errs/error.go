package errs

import (
	"errors"
)

// 定义统一的错误类型
var (
	ErrInvalidParameter = errors.New("参数错误")

	ErrAppNotFound       = errors.New("应用不存在")
	ErrChannelNotFound   = errors.New("渠道不存在")
	ErrRecipientNotFound = errors.New("绑定用户不存在")
	ErrOpenIDDuplicate   = errors.New("用户已绑定该应用")

	ErrTokenUnavailable = errors.New("获取访问令牌失败")

	ErrMessageNotFound     = errors.New("消息记录不存在")
	ErrBindCodeInvalid     = errors.New("绑定码无效或已过期")
	ErrTokenStatusNotFound = errors.New("令牌状态不存在")
)
