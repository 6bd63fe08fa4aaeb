package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gitee.com/flycash/wepush/internal/domain"
	"gitee.com/flycash/wepush/internal/errs"
	"gitee.com/flycash/wepush/internal/pkg/idgen"
	"gitee.com/flycash/wepush/internal/pkg/kv"
	"github.com/pkg/errors"
)

// ChannelRepository 渠道仓储
type ChannelRepository interface {
	Create(ctx context.Context, channel domain.Channel) (domain.Channel, error)
	Update(ctx context.Context, channel domain.Channel) (domain.Channel, error)
	GetByID(ctx context.Context, id string) (domain.Channel, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Channel, error)
}

type channelRepository struct {
	store kv.Store
	idgen *idgen.Generator
}

func NewChannelRepository(store kv.Store, gen *idgen.Generator) ChannelRepository {
	return &channelRepository{store: store, idgen: gen}
}

func (r *channelRepository) Create(ctx context.Context, channel domain.Channel) (domain.Channel, error) {
	if err := channel.Validate(); err != nil {
		return domain.Channel{}, err
	}

	now := time.Now()
	channel.ID = r.idgen.NextID()
	channel.CreatedAt = now
	channel.UpdatedAt = now

	if err := r.put(ctx, channel); err != nil {
		return domain.Channel{}, err
	}
	return channel, nil
}

func (r *channelRepository) Update(ctx context.Context, channel domain.Channel) (domain.Channel, error) {
	if err := channel.Validate(); err != nil {
		return domain.Channel{}, err
	}

	existing, err := r.GetByID(ctx, channel.ID)
	if err != nil {
		return domain.Channel{}, err
	}

	channel.CreatedAt = existing.CreatedAt
	channel.UpdatedAt = time.Now()

	if err := r.put(ctx, channel); err != nil {
		return domain.Channel{}, err
	}
	return channel, nil
}

func (r *channelRepository) GetByID(ctx context.Context, id string) (domain.Channel, error) {
	data, err := r.store.Get(ctx, channelKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return domain.Channel{}, fmt.Errorf("%w: id = %s", errs.ErrChannelNotFound, id)
		}
		return domain.Channel{}, err
	}

	var channel domain.Channel
	if err := json.Unmarshal(data, &channel); err != nil {
		return domain.Channel{}, fmt.Errorf("反序列化渠道失败: %w", err)
	}
	return channel, nil
}

func (r *channelRepository) Delete(ctx context.Context, id string) error {
	return r.store.Del(ctx, channelKey(id))
}

func (r *channelRepository) List(ctx context.Context) ([]domain.Channel, error) {
	keys, err := r.store.Keys(ctx, channelKeyPrefix)
	if err != nil {
		return nil, err
	}

	channels := make([]domain.Channel, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			// 列举和读取之间键被删除，跳过
			if errors.Is(err, kv.ErrKeyNotFound) {
				continue
			}
			return nil, err
		}
		var channel domain.Channel
		if err := json.Unmarshal(data, &channel); err != nil {
			return nil, fmt.Errorf("反序列化渠道失败: %w", err)
		}
		channels = append(channels, channel)
	}

	sort.Slice(channels, func(i, j int) bool {
		return channels[i].CreatedAt.Before(channels[j].CreatedAt)
	})
	return channels, nil
}

func (r *channelRepository) put(ctx context.Context, channel domain.Channel) error {
	data, err := json.Marshal(channel)
	if err != nil {
		return fmt.Errorf("序列化渠道失败: %w", err)
	}
	return r.store.Put(ctx, channelKey(channel.ID), data, 0)
}
