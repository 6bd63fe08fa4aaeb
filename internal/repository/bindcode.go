package repository

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/wepush/internal/errs"
	"gitee.com/flycash/wepush/internal/pkg/idgen"
	"gitee.com/flycash/wepush/internal/pkg/kv"
	"github.com/pkg/errors"
)

// DefaultBindCodeTTL 绑定码默认有效期
const DefaultBindCodeTTL = 10 * time.Minute

// BindCodeRepository 绑定码仓储，绑定码借助底层存储的按键过期自动失效
type BindCodeRepository interface {
	// Create 为应用生成一个短期有效的绑定码
	Create(ctx context.Context, appID string, ttl time.Duration) (string, error)
	// Consume 消费绑定码并返回其对应的应用 ID，绑定码一次性使用
	Consume(ctx context.Context, code string) (string, error)
}

type bindCodeRepository struct {
	store kv.Store
	idgen *idgen.Generator
}

func NewBindCodeRepository(store kv.Store, gen *idgen.Generator) BindCodeRepository {
	return &bindCodeRepository{store: store, idgen: gen}
}

func (r *bindCodeRepository) Create(ctx context.Context, appID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultBindCodeTTL
	}
	code := r.idgen.BindCode()
	if err := r.store.Put(ctx, bindCodeKey(code), []byte(appID), ttl); err != nil {
		return "", err
	}
	return code, nil
}

func (r *bindCodeRepository) Consume(ctx context.Context, code string) (string, error) {
	data, err := r.store.Get(ctx, bindCodeKey(code))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: code = %s", errs.ErrBindCodeInvalid, code)
		}
		return "", err
	}
	// 一次性使用，删除失败不影响本次绑定
	_ = r.store.Del(ctx, bindCodeKey(code))
	return string(data), nil
}
