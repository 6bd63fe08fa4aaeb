package cleanup

import (
	"context"
	"time"

	"gitee.com/flycash/wepush/internal/repository"
	"github.com/gotomicro/ego/core/elog"
)

const defaultRetentionDays = 30

// HistoryCleanupCron 定时清理超出保留期的历史消息
type HistoryCleanupCron struct {
	history       repository.HistoryRepository
	retentionDays int
	logger        *elog.Component
}

func NewHistoryCleanupCron(history repository.HistoryRepository, retentionDays int) *HistoryCleanupCron {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &HistoryCleanupCron{
		history:       history,
		retentionDays: retentionDays,
		logger:        elog.DefaultLogger,
	}
}

func (c *HistoryCleanupCron) Do(ctx context.Context) error {
	start := time.Now()
	deleted, err := c.history.Cleanup(ctx, c.retentionDays)
	if err != nil {
		c.logger.Error("清理历史消息失败", elog.FieldErr(err))
		return err
	}
	c.logger.Info("清理历史消息完成",
		elog.Int("deleted", deleted),
		elog.Int("retentionDays", c.retentionDays),
		elog.FieldCost(time.Since(start)),
	)
	return nil
}
