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

// AppRepository 应用仓储。路由键在创建时生成且不可变更，
// 删除应用会级联删除该应用下的全部绑定用户。
type AppRepository interface {
	Create(ctx context.Context, app domain.App) (domain.App, error)
	Update(ctx context.Context, app domain.App) (domain.App, error)
	GetByID(ctx context.Context, id string) (domain.App, error)
	// GetByKey 按对外路由键解析应用
	GetByKey(ctx context.Context, key string) (domain.App, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.App, error)
}

type appRepository struct {
	store kv.Store
	idgen *idgen.Generator
}

func NewAppRepository(store kv.Store, gen *idgen.Generator) AppRepository {
	return &appRepository{store: store, idgen: gen}
}

func (r *appRepository) Create(ctx context.Context, app domain.App) (domain.App, error) {
	if err := app.Validate(); err != nil {
		return domain.App{}, err
	}

	now := time.Now()
	app.ID = r.idgen.NextID()
	app.Key = r.idgen.AppKey()
	app.CreatedAt = now
	app.UpdatedAt = now

	if err := r.put(ctx, app); err != nil {
		return domain.App{}, err
	}
	if err := r.store.Put(ctx, appKeyIndex(app.Key), []byte(app.ID), 0); err != nil {
		return domain.App{}, err
	}
	return app, nil
}

func (r *appRepository) Update(ctx context.Context, app domain.App) (domain.App, error) {
	existing, err := r.GetByID(ctx, app.ID)
	if err != nil {
		return domain.App{}, err
	}

	// 路由键不可变更
	app.Key = existing.Key
	app.CreatedAt = existing.CreatedAt
	app.UpdatedAt = time.Now()

	if err := app.Validate(); err != nil {
		return domain.App{}, err
	}

	if err := r.put(ctx, app); err != nil {
		return domain.App{}, err
	}
	return app, nil
}

func (r *appRepository) GetByID(ctx context.Context, id string) (domain.App, error) {
	data, err := r.store.Get(ctx, appKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return domain.App{}, fmt.Errorf("%w: id = %s", errs.ErrAppNotFound, id)
		}
		return domain.App{}, err
	}
	return unmarshalApp(data)
}

func (r *appRepository) GetByKey(ctx context.Context, key string) (domain.App, error) {
	id, err := r.store.Get(ctx, appKeyIndex(key))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return domain.App{}, fmt.Errorf("%w: key = %s", errs.ErrAppNotFound, key)
		}
		return domain.App{}, err
	}
	return r.GetByID(ctx, string(id))
}

func (r *appRepository) Delete(ctx context.Context, id string) error {
	app, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrAppNotFound) {
			return nil
		}
		return err
	}

	// 级联删除该应用下的所有绑定用户
	keys, err := r.store.Keys(ctx, recipientKeyScope(id))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := r.store.Del(ctx, key); err != nil {
			return err
		}
	}

	if err := r.store.Del(ctx, appKeyIndex(app.Key)); err != nil {
		return err
	}
	return r.store.Del(ctx, appKey(id))
}

func (r *appRepository) List(ctx context.Context) ([]domain.App, error) {
	keys, err := r.store.Keys(ctx, appKeyPrefix)
	if err != nil {
		return nil, err
	}

	apps := make([]domain.App, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrKeyNotFound) {
				continue
			}
			return nil, err
		}
		app, err := unmarshalApp(data)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}

	sort.Slice(apps, func(i, j int) bool {
		return apps[i].CreatedAt.Before(apps[j].CreatedAt)
	})
	return apps, nil
}

func (r *appRepository) put(ctx context.Context, app domain.App) error {
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("序列化应用失败: %w", err)
	}
	return r.store.Put(ctx, appKey(app.ID), data, 0)
}

func unmarshalApp(data []byte) (domain.App, error) {
	var app domain.App
	if err := json.Unmarshal(data, &app); err != nil {
		return domain.App{}, fmt.Errorf("反序列化应用失败: %w", err)
	}
	return app, nil
}
