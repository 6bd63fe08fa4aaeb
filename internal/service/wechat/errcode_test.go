package wechat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeMessage(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		code int64
		raw  string
		want string
	}{
		{
			name: "已知错误码使用静态映射",
			code: CodeUserNotSubscribed,
			raw:  "require subscribe",
			want: "用户未关注公众号",
		},
		{
			name: "未知错误码携带原始信息",
			code: 99999,
			raw:  "unknown",
			want: "API error: 99999 (unknown)",
		},
		{
			name: "未知错误码无原始信息",
			code: 99999,
			want: "API error: 99999",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CodeMessage(tc.code, tc.raw))
		})
	}
}

func TestIsTokenExpired(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTokenExpired(&APIError{Code: CodeInvalidCredential}))
	assert.True(t, IsTokenExpired(&APIError{Code: CodeAccessTokenExpired}))
	assert.False(t, IsTokenExpired(&APIError{Code: CodeUserNotSubscribed}))
	assert.False(t, IsTokenExpired(fmt.Errorf("网络错误")))
	assert.False(t, IsTokenExpired(nil))

	// 包装后的错误依然能识别
	wrapped := fmt.Errorf("发送失败: %w", &APIError{Code: CodeAccessTokenExpired})
	assert.True(t, IsTokenExpired(wrapped))
}
