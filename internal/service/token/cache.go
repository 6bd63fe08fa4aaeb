package token

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gitee.com/flycash/wepush/internal/domain"
	"gitee.com/flycash/wepush/internal/errs"
	"gitee.com/flycash/wepush/internal/pkg/kv"
	"gitee.com/flycash/wepush/internal/repository"
	"gitee.com/flycash/wepush/internal/service/wechat"
	"github.com/gotomicro/ego/core/elog"
	ca "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// expirySafetyMargin 从供应商声明的有效期里扣掉的安全余量，
// 避免拿到临近过期的令牌后在发送途中失效
const expirySafetyMargin = 300 * time.Second

// Cache 两级访问令牌缓存：进程内存一级、键值存储二级，均以渠道的 AppID 为键。
// 两个渠道共用同一 AppID 时共享一份令牌，这是预期行为。
// 并发刷新不加锁：令牌签发幂等，后写的成功结果覆盖先写的即可。
type Cache struct {
	local  *ca.Cache
	store  kv.Store
	api    *wechat.Client
	status repository.TokenStatusRepository
	logger *elog.Component
}

func NewCache(store kv.Store, api *wechat.Client, status repository.TokenStatusRepository) *Cache {
	return &Cache{
		local:  ca.New(ca.NoExpiration, time.Minute),
		store:  store,
		api:    api,
		status: status,
		logger: elog.DefaultLogger,
	}
}

// cacheKey 仅由渠道凭证的 AppID 决定
func cacheKey(channel domain.Channel) string {
	return "token:" + channel.Config.AppID
}

// AccessToken 返回渠道当前可用的访问令牌。
// force 为 true 时跳过两级缓存直接向供应商重新签发。
// 任何失败（凭证缺失、供应商报错、网络错误）都会更新令牌状态并返回错误，不会向上抛异常。
func (c *Cache) AccessToken(ctx context.Context, channel domain.Channel, force bool) (string, error) {
	if !channel.CanAuthenticate() {
		return "", fmt.Errorf("%w: 渠道 %s 缺少 AppID 或 AppSecret", errs.ErrTokenUnavailable, channel.ID)
	}

	key := cacheKey(channel)
	now := time.Now()

	if !force {
		// 一级：进程内存
		if v, ok := c.local.Get(key); ok {
			cached := v.(domain.CachedToken)
			if cached.Valid(now) {
				return cached.AccessToken, nil
			}
		}

		// 二级：键值存储，命中后回填内存
		if cached, err := c.loadFromStore(ctx, key); err == nil && cached.Valid(now) {
			c.local.Set(key, cached, time.Until(cached.ExpiresAt))
			return cached.AccessToken, nil
		}
	}

	return c.refresh(ctx, channel, key)
}

// refresh 向供应商签发新令牌，写入两级缓存并记录令牌状态
func (c *Cache) refresh(ctx context.Context, channel domain.Channel, key string) (string, error) {
	result, err := c.api.FetchToken(ctx, channel.Config.AppID, channel.Config.AppSecret)
	if err != nil {
		c.recordFailure(ctx, channel, err)
		return "", fmt.Errorf("%w: %w", errs.ErrTokenUnavailable, err)
	}

	expiresAt := time.Now().Add(time.Duration(result.ExpiresIn)*time.Second - expirySafetyMargin)
	cached := domain.CachedToken{
		AccessToken: result.AccessToken,
		ExpiresAt:   expiresAt,
	}

	c.local.Set(key, cached, time.Until(expiresAt))
	if err := c.saveToStore(ctx, key, cached); err != nil {
		// 二级缓存写失败只影响下次进程重启后的命中率，令牌本身可用
		c.logger.Warn("令牌写入键值存储失败",
			elog.String("channelId", channel.ID),
			elog.FieldErr(err),
		)
	}

	c.recordSuccess(ctx, channel, expiresAt)
	return cached.AccessToken, nil
}

func (c *Cache) loadFromStore(ctx context.Context, key string) (domain.CachedToken, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return domain.CachedToken{}, err
	}
	var cached domain.CachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		return domain.CachedToken{}, fmt.Errorf("反序列化令牌失败: %w", err)
	}
	return cached, nil
}

func (c *Cache) saveToStore(ctx context.Context, key string, cached domain.CachedToken) error {
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("序列化令牌失败: %w", err)
	}
	return c.store.Put(ctx, key, data, time.Until(cached.ExpiresAt))
}

func (c *Cache) recordSuccess(ctx context.Context, channel domain.Channel, expiresAt time.Time) {
	c.saveStatus(ctx, domain.TokenStatus{
		ChannelID:          channel.ID,
		Valid:              true,
		LastRefreshAt:      time.Now(),
		LastRefreshSuccess: true,
		ExpiresAt:          &expiresAt,
	})
}

func (c *Cache) recordFailure(ctx context.Context, channel domain.Channel, cause error) {
	status := domain.TokenStatus{
		ChannelID:          channel.ID,
		Valid:              false,
		LastRefreshAt:      time.Now(),
		LastRefreshSuccess: false,
		Error:              cause.Error(),
	}
	// 供应商业务错误与网络错误区分开，前者带错误码
	if apiErr, ok := wechat.AsAPIError(cause); ok {
		status.ErrorCode = apiErr.Code
	}
	c.saveStatus(ctx, status)
}

func (c *Cache) saveStatus(ctx context.Context, status domain.TokenStatus) {
	if err := c.status.Save(ctx, status); err != nil {
		c.logger.Warn("保存令牌状态失败",
			elog.String("channelId", status.ChannelID),
			elog.FieldErr(err),
		)
	}
}

// Invalidate 清除某渠道凭证对应的两级缓存，管理端更新 AppSecret 后调用
func (c *Cache) Invalidate(ctx context.Context, channel domain.Channel) {
	key := cacheKey(channel)
	c.local.Delete(key)
	if err := c.store.Del(ctx, key); err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
		c.logger.Warn("清除令牌缓存失败",
			elog.String("channelId", channel.ID),
			elog.FieldErr(err),
		)
	}
}
