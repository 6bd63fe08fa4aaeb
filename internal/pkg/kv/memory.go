package kv

import (
	"context"
	"sort"
	"strings"
	"time"

	ca "github.com/patrickmn/go-cache"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore 进程内键值存储，供单机部署和测试使用
type MemoryStore struct {
	c *ca.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		c: ca.New(ca.NoExpiration, time.Minute),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v.([]byte), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ca.NoExpiration
	}
	// 拷贝一份，避免调用方后续修改切片影响存储内容
	cp := make([]byte, len(val))
	copy(cp, val)
	s.c.Set(key, cp, ttl)
	return nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	items := s.c.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
