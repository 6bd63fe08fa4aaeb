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

// RecipientRepository 绑定用户仓储
type RecipientRepository interface {
	Create(ctx context.Context, recipient domain.Recipient) (domain.Recipient, error)
	// ListByApp 返回应用下的所有绑定用户，按绑定时间升序排列。
	// 单推模式的"第一个用户"即此序列的第一个元素，最早绑定者优先。
	ListByApp(ctx context.Context, appID string) ([]domain.Recipient, error)
	GetByID(ctx context.Context, appID, id string) (domain.Recipient, error)
	Delete(ctx context.Context, appID, id string) error
}

type recipientRepository struct {
	store kv.Store
	idgen *idgen.Generator
}

func NewRecipientRepository(store kv.Store, gen *idgen.Generator) RecipientRepository {
	return &recipientRepository{store: store, idgen: gen}
}

func (r *recipientRepository) Create(ctx context.Context, recipient domain.Recipient) (domain.Recipient, error) {
	if err := recipient.Validate(); err != nil {
		return domain.Recipient{}, err
	}

	// OpenID 在应用内唯一
	existing, err := r.ListByApp(ctx, recipient.AppID)
	if err != nil {
		return domain.Recipient{}, err
	}
	for i := range existing {
		if existing[i].OpenID == recipient.OpenID {
			return domain.Recipient{}, fmt.Errorf("%w: openId = %s", errs.ErrOpenIDDuplicate, recipient.OpenID)
		}
	}

	now := time.Now()
	recipient.ID = r.idgen.NextID()
	recipient.CreatedAt = now
	recipient.UpdatedAt = now

	data, err := json.Marshal(recipient)
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("序列化绑定用户失败: %w", err)
	}
	if err := r.store.Put(ctx, recipientKey(recipient.AppID, recipient.ID), data, 0); err != nil {
		return domain.Recipient{}, err
	}
	return recipient, nil
}

func (r *recipientRepository) ListByApp(ctx context.Context, appID string) ([]domain.Recipient, error) {
	keys, err := r.store.Keys(ctx, recipientKeyScope(appID))
	if err != nil {
		return nil, err
	}

	recipients := make([]domain.Recipient, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrKeyNotFound) {
				continue
			}
			return nil, err
		}
		var recipient domain.Recipient
		if err := json.Unmarshal(data, &recipient); err != nil {
			return nil, fmt.Errorf("反序列化绑定用户失败: %w", err)
		}
		recipients = append(recipients, recipient)
	}

	sort.Slice(recipients, func(i, j int) bool {
		if !recipients[i].CreatedAt.Equal(recipients[j].CreatedAt) {
			return recipients[i].CreatedAt.Before(recipients[j].CreatedAt)
		}
		return recipients[i].ID < recipients[j].ID
	})
	return recipients, nil
}

func (r *recipientRepository) GetByID(ctx context.Context, appID, id string) (domain.Recipient, error) {
	data, err := r.store.Get(ctx, recipientKey(appID, id))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return domain.Recipient{}, fmt.Errorf("%w: id = %s", errs.ErrRecipientNotFound, id)
		}
		return domain.Recipient{}, err
	}

	var recipient domain.Recipient
	if err := json.Unmarshal(data, &recipient); err != nil {
		return domain.Recipient{}, fmt.Errorf("反序列化绑定用户失败: %w", err)
	}
	return recipient, nil
}

func (r *recipientRepository) Delete(ctx context.Context, appID, id string) error {
	return r.store.Del(ctx, recipientKey(appID, id))
}
