package main

import (
	"gitee.com/flycash/wepush/internal/ioc"
	"github.com/gotomicro/ego"
	"github.com/gotomicro/ego/core/elog"
	"github.com/gotomicro/ego/server"
)

func main() {
	app := ioc.InitApp()
	if err := ego.New().
		Serve(func() server.Server { return app.Web }()).
		Cron(app.Crons...).
		Run(); err != nil {
		elog.Panic("startup", elog.Any("err", err))
	}
}
