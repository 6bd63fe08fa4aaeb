package ioc

import (
	"gitee.com/flycash/wepush/internal/pkg/kv"
	"gitee.com/flycash/wepush/internal/repository"
	"github.com/gotomicro/ego/core/econf"
)

func InitHistoryRepository(store kv.Store) repository.HistoryRepository {
	cfg := repository.DefaultHistoryConfig()
	err := econf.UnmarshalKey("history", &cfg)
	if err != nil {
		panic(err)
	}
	return repository.NewHistoryRepository(store, cfg)
}
