package ratelimit

import "context"

// Limiter 限流器
type Limiter interface {
	// Limit 判断 key 对应的请求是否应该被限流
	Limit(ctx context.Context, key string) (bool, error)
}
