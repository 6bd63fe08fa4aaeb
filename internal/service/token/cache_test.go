package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gitee.com/flycash/wepush/internal/domain"
	"gitee.com/flycash/wepush/internal/errs"
	"gitee.com/flycash/wepush/internal/pkg/kv"
	"gitee.com/flycash/wepush/internal/repository"
	"gitee.com/flycash/wepush/internal/service/wechat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenStub 模拟令牌签发接口，记录调用次数并按次序返回不同令牌
type tokenStub struct {
	calls   atomic.Int64
	errcode int64
}

func (s *tokenStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := s.calls.Add(1)
		if s.errcode != 0 {
			_ = json.NewEncoder(w).Encode(map[string]any{"errcode": s.errcode, "errmsg": "stub error"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "TOKEN_" + string(rune('A'+n-1)),
			"expires_in":   7200,
		})
	})
}

func testChannel(id, appID string) domain.Channel {
	return domain.Channel{
		ID:   id,
		Name: "测试渠道",
		Config: domain.ChannelConfig{
			AppID:     appID,
			AppSecret: "secret",
		},
	}
}

func TestCache_AccessToken_MemoryHit(t *testing.T) {
	t.Parallel()

	stub := &tokenStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	store := kv.NewMemoryStore()
	cache := NewCache(store, wechat.NewClient(wechat.Config{BaseURL: srv.URL}), repository.NewTokenStatusRepository(store))
	ctx := context.Background()
	channel := testChannel("ch1", "wx123")

	first, err := cache.AccessToken(ctx, channel, false)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN_A", first)

	// 第二次命中进程内存，不再请求签发接口
	second, err := cache.AccessToken(ctx, channel, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestCache_AccessToken_StoreHit(t *testing.T) {
	t.Parallel()

	stub := &tokenStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	store := kv.NewMemoryStore()
	api := wechat.NewClient(wechat.Config{BaseURL: srv.URL})
	status := repository.NewTokenStatusRepository(store)
	ctx := context.Background()
	channel := testChannel("ch1", "wx123")

	first, err := NewCache(store, api, status).AccessToken(ctx, channel, false)
	require.NoError(t, err)

	// 新的 Cache 实例模拟进程重启，二级缓存命中后不再请求签发接口
	second, err := NewCache(store, api, status).AccessToken(ctx, channel, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestCache_AccessToken_SharedAppID(t *testing.T) {
	t.Parallel()

	stub := &tokenStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	store := kv.NewMemoryStore()
	cache := NewCache(store, wechat.NewClient(wechat.Config{BaseURL: srv.URL}), repository.NewTokenStatusRepository(store))
	ctx := context.Background()

	// 两个渠道使用同一套凭证时共享一份令牌
	first, err := cache.AccessToken(ctx, testChannel("ch1", "wx123"), false)
	require.NoError(t, err)
	second, err := cache.AccessToken(ctx, testChannel("ch2", "wx123"), false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestCache_AccessToken_ForceRefresh(t *testing.T) {
	t.Parallel()

	stub := &tokenStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	store := kv.NewMemoryStore()
	status := repository.NewTokenStatusRepository(store)
	cache := NewCache(store, wechat.NewClient(wechat.Config{BaseURL: srv.URL}), status)
	ctx := context.Background()
	channel := testChannel("ch1", "wx123")

	first, err := cache.AccessToken(ctx, channel, false)
	require.NoError(t, err)

	second, err := cache.AccessToken(ctx, channel, true)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, int64(2), stub.calls.Load())

	// 刷新成功后状态可见
	st, err := status.Get(ctx, channel.ID)
	require.NoError(t, err)
	assert.True(t, st.Valid)
	assert.True(t, st.LastRefreshSuccess)
	require.NotNil(t, st.ExpiresAt)
}

func TestCache_AccessToken_RefreshFailure(t *testing.T) {
	t.Parallel()

	stub := &tokenStub{errcode: 40001}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	store := kv.NewMemoryStore()
	status := repository.NewTokenStatusRepository(store)
	cache := NewCache(store, wechat.NewClient(wechat.Config{BaseURL: srv.URL}), status)
	ctx := context.Background()
	channel := testChannel("ch1", "wx123")

	_, err := cache.AccessToken(ctx, channel, false)
	require.ErrorIs(t, err, errs.ErrTokenUnavailable)

	// 失败同样记录状态，带上供应商错误码
	st, err := status.Get(ctx, channel.ID)
	require.NoError(t, err)
	assert.False(t, st.Valid)
	assert.False(t, st.LastRefreshSuccess)
	assert.Equal(t, wechat.CodeInvalidCredential, st.ErrorCode)
	assert.NotEmpty(t, st.Error)
}

func TestCache_AccessToken_MissingCredentials(t *testing.T) {
	t.Parallel()

	store := kv.NewMemoryStore()
	cache := NewCache(store, wechat.NewClient(wechat.Config{}), repository.NewTokenStatusRepository(store))

	channel := domain.Channel{ID: "ch1", Name: "无凭证"}
	_, err := cache.AccessToken(context.Background(), channel, false)
	assert.ErrorIs(t, err, errs.ErrTokenUnavailable)
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()

	stub := &tokenStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	store := kv.NewMemoryStore()
	cache := NewCache(store, wechat.NewClient(wechat.Config{BaseURL: srv.URL}), repository.NewTokenStatusRepository(store))
	ctx := context.Background()
	channel := testChannel("ch1", "wx123")

	_, err := cache.AccessToken(ctx, channel, false)
	require.NoError(t, err)

	cache.Invalidate(ctx, channel)

	_, err = cache.AccessToken(ctx, channel, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stub.calls.Load())
}
