package ioc

import (
	"gitee.com/flycash/wepush/internal/web"
	"github.com/gotomicro/ego/server/egin"
)

func InitWebServer(webhook *web.WebhookHandler, admin *web.AdminHandler) *egin.Component {
	server := egin.Load("server.http").Build()
	admin.PrivateRoutes(server.Engine)
	webhook.PublicRoutes(server.Engine)
	return server
}
