package ioc

import (
	"fmt"

	"gitee.com/flycash/wepush/internal/pkg/kv"
	"github.com/gotomicro/ego/core/econf"
	"github.com/redis/go-redis/v9"
)

// InitKVStore 按配置选择键值存储实现。
// memory 实现仅用于本地开发和测试，进程重启后数据丢失。
func InitKVStore(client *redis.Client) kv.Store {
	type Config struct {
		Driver string
	}
	cfg := Config{Driver: "redis"}
	err := econf.UnmarshalKey("kv", &cfg)
	if err != nil {
		panic(err)
	}
	switch cfg.Driver {
	case "redis":
		return kv.NewRedisStore(client)
	case "memory":
		return kv.NewMemoryStore()
	default:
		panic(fmt.Sprintf("未知的 kv driver: %s", cfg.Driver))
	}
}
