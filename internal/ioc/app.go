package ioc

import (
	"gitee.com/flycash/wepush/internal/pkg/idgen"
	"gitee.com/flycash/wepush/internal/repository"
	"gitee.com/flycash/wepush/internal/service/push"
	"gitee.com/flycash/wepush/internal/service/token"
	"gitee.com/flycash/wepush/internal/web"
	"github.com/gotomicro/ego/server/egin"
	"github.com/gotomicro/ego/task/ecron"
)

// App 组装完成的应用，Web 服务和后台定时任务
type App struct {
	Web   *egin.Component
	Crons []ecron.Ecron
}

func InitApp() *App {
	redisClient := InitRedisClient()
	store := InitKVStore(redisClient)
	gen := idgen.NewGenerator()

	channelRepo := repository.NewChannelRepository(store, gen)
	appRepo := repository.NewAppRepository(store, gen)
	recipientRepo := repository.NewRecipientRepository(store, gen)
	historyRepo := InitHistoryRepository(store)
	bindCodeRepo := repository.NewBindCodeRepository(store, gen)
	statusRepo := repository.NewTokenStatusRepository(store)

	api := InitWeChatClient()
	tokens := token.NewCache(store, api, statusRepo)
	pusher := push.NewPusher(appRepo, channelRepo, recipientRepo, historyRepo, tokens, api, gen)

	webhookHandler := web.NewWebhookHandler(pusher, InitLimiter(redisClient))
	adminHandler := web.NewAdminHandler(
		channelRepo, appRepo, recipientRepo,
		historyRepo, bindCodeRepo, statusRepo, tokens,
	)

	return &App{
		Web:   InitWebServer(webhookHandler, adminHandler),
		Crons: Crons(historyRepo),
	}
}
