package repository

import (
	"context"
	"testing"

	"gitee.com/flycash/wepush/internal/domain"
	"gitee.com/flycash/wepush/internal/errs"
	"gitee.com/flycash/wepush/internal/pkg/idgen"
	"gitee.com/flycash/wepush/internal/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAppRepo() (AppRepository, RecipientRepository) {
	store := kv.NewMemoryStore()
	gen := idgen.NewGenerator()
	return NewAppRepository(store, gen), NewRecipientRepository(store, gen)
}

func validApp(channelID string) domain.App {
	return domain.App{
		Name:        "测试应用",
		ChannelID:   channelID,
		PushMode:    domain.PushModeSingle,
		MessageType: domain.MessageTypeNormal,
	}
}

func TestAppRepository_CreateAndGetByKey(t *testing.T) {
	t.Parallel()

	repo, _ := newTestAppRepo()
	ctx := context.Background()

	created, err := repo.Create(ctx, validApp("ch1"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Contains(t, created.Key, "APK_")

	byKey, err := repo.GetByKey(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byKey.ID)

	_, err = repo.GetByKey(ctx, "APK_missing")
	assert.ErrorIs(t, err, errs.ErrAppNotFound)
}

func TestAppRepository_UpdateKeepsKey(t *testing.T) {
	t.Parallel()

	repo, _ := newTestAppRepo()
	ctx := context.Background()

	created, err := repo.Create(ctx, validApp("ch1"))
	require.NoError(t, err)

	modified := created
	modified.Name = "改名"
	modified.Key = "APK_faked"
	updated, err := repo.Update(ctx, modified)
	require.NoError(t, err)

	assert.Equal(t, "改名", updated.Name)
	assert.Equal(t, created.Key, updated.Key)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestAppRepository_DeleteCascadesRecipients(t *testing.T) {
	t.Parallel()

	repo, recipients := newTestAppRepo()
	ctx := context.Background()

	created, err := repo.Create(ctx, validApp("ch1"))
	require.NoError(t, err)
	_, err = recipients.Create(ctx, domain.Recipient{AppID: created.ID, OpenID: "openid-1"})
	require.NoError(t, err)
	_, err = recipients.Create(ctx, domain.Recipient{AppID: created.ID, OpenID: "openid-2"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, errs.ErrAppNotFound)
	// 路由键索引同步清除
	_, err = repo.GetByKey(ctx, created.Key)
	assert.ErrorIs(t, err, errs.ErrAppNotFound)
	// 绑定用户级联删除
	list, err := recipients.ListByApp(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	// 删除不存在的应用不算错误
	assert.NoError(t, repo.Delete(ctx, created.ID))
}

func TestAppRepository_Validate(t *testing.T) {
	t.Parallel()

	repo, _ := newTestAppRepo()
	ctx := context.Background()

	testCases := []struct {
		name   string
		modify func(app *domain.App)
	}{
		{name: "缺少名称", modify: func(app *domain.App) { app.Name = "" }},
		{name: "缺少渠道", modify: func(app *domain.App) { app.ChannelID = "" }},
		{name: "推送模式不合法", modify: func(app *domain.App) { app.PushMode = "broadcast" }},
		{name: "消息类型不合法", modify: func(app *domain.App) { app.MessageType = "image" }},
		{name: "模板消息缺少模板", modify: func(app *domain.App) {
			app.MessageType = domain.MessageTypeTemplate
			app.TemplateID = ""
		}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			app := validApp("ch1")
			tc.modify(&app)
			_, err := repo.Create(ctx, app)
			assert.ErrorIs(t, err, errs.ErrInvalidParameter)
		})
	}
}
