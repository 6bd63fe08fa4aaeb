package ioc

import (
	"gitee.com/flycash/wepush/internal/repository"
	"gitee.com/flycash/wepush/internal/service/cleanup"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/task/ecron"
)

func Crons(history repository.HistoryRepository) []ecron.Ecron {
	type Config struct {
		RetentionDays int
	}
	var cfg Config
	err := econf.UnmarshalKey("cleanup", &cfg)
	if err != nil {
		panic(err)
	}
	job := cleanup.NewHistoryCleanupCron(history, cfg.RetentionDays)
	c1 := ecron.Load("cron.cleanup").Build(ecron.WithJob(job.Do))
	return []ecron.Ecron{c1}
}
