package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Limiter = (*RedisSlidingWindowLimiter)(nil)

// RedisSlidingWindowLimiter 基于 Redis 有序集合的滑动窗口限流器
type RedisSlidingWindowLimiter struct {
	cmd       redis.Cmdable
	interval  time.Duration
	rate      int
	keyPrefix string
	seq       int64
}

// NewRedisSlidingWindowLimiter 创建一个滑动窗口限流器，窗口 interval 内最多放行 rate 个请求
func NewRedisSlidingWindowLimiter(cmd redis.Cmdable, interval time.Duration, rate int) *RedisSlidingWindowLimiter {
	return &RedisSlidingWindowLimiter{
		cmd:       cmd,
		interval:  interval,
		rate:      rate,
		keyPrefix: "ratelimit:",
	}
}

// Limit 判断是否应该限流
func (r *RedisSlidingWindowLimiter) Limit(ctx context.Context, key string) (bool, error) {
	redisKey := r.keyPrefix + key
	now := time.Now().UnixMilli()
	windowStart := now - r.interval.Milliseconds()

	pipe := r.cmd.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("限流检查失败: %w", err)
	}

	if countCmd.Val() >= int64(r.rate) {
		return true, nil
	}

	pipe = r.cmd.TxPipeline()
	// 成员必须唯一，同一毫秒的并发请求靠序列号区分
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatInt(atomic.AddInt64(&r.seq, 1), 10)
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now),
		Member: member,
	})
	pipe.Expire(ctx, redisKey, r.interval)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("限流计数失败: %w", err)
	}
	return false, nil
}
