package ioc

import (
	"time"

	"gitee.com/flycash/wepush/internal/service/wechat"
	"github.com/gotomicro/ego/core/econf"
)

func InitWeChatClient() *wechat.Client {
	type Config struct {
		BaseURL string
		Timeout time.Duration
	}
	var cfg Config
	err := econf.UnmarshalKey("wechat", &cfg)
	if err != nil {
		panic(err)
	}
	return wechat.NewClient(wechat.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
}
