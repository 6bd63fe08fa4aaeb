package kv

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrKeyNotFound 键不存在
var ErrKeyNotFound = errors.New("键不存在")

// Store 键值存储抽象：按键读写删除、按前缀列举、可选的按键过期时间。
// 底层不提供跨键事务，也不提供前缀列举之外的范围查询。
type Store interface {
	// Get 读取键对应的值，键不存在时返回 ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Put 写入键值，ttl 大于 0 时设置过期时间
	Put(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Del 删除键，键不存在不算错误
	Del(ctx context.Context, key string) error
	// Keys 列举所有以 prefix 开头的键
	Keys(ctx context.Context, prefix string) ([]string, error)
}
