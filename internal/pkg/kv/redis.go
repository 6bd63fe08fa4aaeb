package kv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const scanCount = 100

var _ Store = (*RedisStore)(nil)

// RedisStore 基于 Redis 的键值存储实现
type RedisStore struct {
	cmd redis.Cmdable
}

func NewRedisStore(cmd redis.Cmdable) *RedisStore {
	return &RedisStore{cmd: cmd}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.cmd.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, errors.Wrap(err, "redis get 失败")
	}
	return val, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0
	}
	if err := s.cmd.Set(ctx, key, val, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set 失败")
	}
	return nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.cmd.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "redis del 失败")
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.cmd.Scan(ctx, 0, prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "redis scan 失败")
	}
	return keys, nil
}
