package ioc

import (
	"fmt"
	"time"

	"gitee.com/flycash/wepush/internal/pkg/ratelimit"
	"github.com/gotomicro/ego/core/econf"
	"github.com/redis/go-redis/v9"
)

// InitLimiter 初始化推送入口的滑动窗口限流器
func InitLimiter(client *redis.Client) ratelimit.Limiter {
	type Config struct {
		Driver   string
		Interval time.Duration
		Rate     int
	}
	cfg := Config{
		Driver:   "redis",
		Interval: time.Minute,
		Rate:     60,
	}
	err := econf.UnmarshalKey("ratelimit", &cfg)
	if err != nil {
		panic(err)
	}
	switch cfg.Driver {
	case "redis":
		return ratelimit.NewRedisSlidingWindowLimiter(client, cfg.Interval, cfg.Rate)
	case "local":
		return ratelimit.NewLocalSlidingWindowLimiter(cfg.Interval, cfg.Rate)
	default:
		panic(fmt.Sprintf("未知的 ratelimit driver: %s", cfg.Driver))
	}
}
