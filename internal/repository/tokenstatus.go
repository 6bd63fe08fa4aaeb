package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gitee.com/flycash/wepush/internal/domain"
	"gitee.com/flycash/wepush/internal/errs"
	"gitee.com/flycash/wepush/internal/pkg/kv"
	"github.com/pkg/errors"
)

// TokenStatusRepository 令牌状态仓储，每个渠道一条记录，每次取令牌时覆盖写入
type TokenStatusRepository interface {
	Save(ctx context.Context, status domain.TokenStatus) error
	Get(ctx context.Context, channelID string) (domain.TokenStatus, error)
	List(ctx context.Context) ([]domain.TokenStatus, error)
}

type tokenStatusRepository struct {
	store kv.Store
}

func NewTokenStatusRepository(store kv.Store) TokenStatusRepository {
	return &tokenStatusRepository{store: store}
}

func (r *tokenStatusRepository) Save(ctx context.Context, status domain.TokenStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("序列化令牌状态失败: %w", err)
	}
	return r.store.Put(ctx, tokenStatusKey(status.ChannelID), data, 0)
}

func (r *tokenStatusRepository) Get(ctx context.Context, channelID string) (domain.TokenStatus, error) {
	data, err := r.store.Get(ctx, tokenStatusKey(channelID))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return domain.TokenStatus{}, fmt.Errorf("%w: channelId = %s", errs.ErrTokenStatusNotFound, channelID)
		}
		return domain.TokenStatus{}, err
	}

	var status domain.TokenStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.TokenStatus{}, fmt.Errorf("反序列化令牌状态失败: %w", err)
	}
	return status, nil
}

func (r *tokenStatusRepository) List(ctx context.Context) ([]domain.TokenStatus, error) {
	keys, err := r.store.Keys(ctx, tokenStatusKeyPrefix)
	if err != nil {
		return nil, err
	}

	statuses := make([]domain.TokenStatus, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrKeyNotFound) {
				continue
			}
			return nil, err
		}
		var status domain.TokenStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("反序列化令牌状态失败: %w", err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
