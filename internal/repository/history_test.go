package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gitee.com/flycash/wepush/internal/domain"
	"gitee.com/flycash/wepush/internal/errs"
	"gitee.com/flycash/wepush/internal/pkg/kv"
	"github.com/stretchr/testify/suite"
)

type HistoryRepositoryTestSuite struct {
	suite.Suite
	repo HistoryRepository
}

func (s *HistoryRepositoryTestSuite) SetupTest() {
	// 缩小容量上限，便于验证截断行为
	s.repo = NewHistoryRepository(kv.NewMemoryStore(), HistoryConfig{
		GlobalCap:    100,
		ChannelCap:   50,
		AppCap:       50,
		RecipientCap: 3,
		ScanBatch:    10,
	})
}

func (s *HistoryRepositoryTestSuite) newMessage(id string, createdAt time.Time) domain.Message {
	return domain.Message{
		ID:        id,
		Direction: domain.DirectionOutbound,
		Type:      "normal",
		ChannelID: "ch1",
		AppID:     "app1",
		OpenID:    "openid-1",
		Title:     "标题 " + id,
		Results: []domain.DeliveryResult{
			{OpenID: "openid-1", Success: true, MsgID: "m" + id},
		},
		CreatedAt: createdAt,
	}
}

func (s *HistoryRepositoryTestSuite) TestSaveAndGet() {
	ctx := context.Background()
	msg := s.newMessage("1001", time.Now())

	s.Require().NoError(s.repo.Save(ctx, msg))

	got, err := s.repo.Get(ctx, "1001")
	s.Require().NoError(err)
	s.Equal(msg.ID, got.ID)
	s.Equal(msg.Title, got.Title)
	s.Equal(msg.Results, got.Results)

	_, err = s.repo.Get(ctx, "no-such-id")
	s.ErrorIs(err, errs.ErrMessageNotFound)
}

func (s *HistoryRepositoryTestSuite) TestListByApp() {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		msg := s.newMessage(fmt.Sprintf("%d", 2000+i), base.Add(time.Duration(i)*time.Minute))
		msg.OpenID = fmt.Sprintf("openid-%d", i)
		s.Require().NoError(s.repo.Save(ctx, msg))
	}
	// 其他应用的消息不应出现在结果里
	other := s.newMessage("3000", base)
	other.AppID = "app2"
	s.Require().NoError(s.repo.Save(ctx, other))

	page, err := s.repo.ListByApp(ctx, "app1", 1, 3)
	s.Require().NoError(err)
	s.Equal(5, page.Total)
	s.Require().Len(page.Messages, 3)
	// 索引是新消息在前
	s.Equal("2004", page.Messages[0].ID)

	page, err = s.repo.ListByApp(ctx, "app1", 2, 3)
	s.Require().NoError(err)
	s.Len(page.Messages, 2)

	// 渠道索引覆盖两个应用的全部消息
	page, err = s.repo.ListByChannel(ctx, "ch1", 1, 10)
	s.Require().NoError(err)
	s.Equal(6, page.Total)
}

func (s *HistoryRepositoryTestSuite) TestRecipientListTrimmed() {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		msg := s.newMessage(fmt.Sprintf("%d", 4000+i), base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.repo.Save(ctx, msg))
	}

	// RecipientCap 为 3，只保留最新的 3 条
	page, err := s.repo.ListByOpenID(ctx, "openid-1", 1, 10)
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	s.Equal("4004", page.Messages[0].ID)
	s.Equal("4002", page.Messages[2].ID)

	// 被截断的消息本体仍然存在，只是不再出现在该索引里
	_, err = s.repo.Get(ctx, "4000")
	s.NoError(err)
}

func (s *HistoryRepositoryTestSuite) TestListWithFilterFallback() {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	outbound := s.newMessage("5001", base)
	s.Require().NoError(s.repo.Save(ctx, outbound))

	inbound := domain.Message{
		ID:        "5002",
		Direction: domain.DirectionInbound,
		Type:      "text",
		ChannelID: "ch1",
		OpenID:    "openid-1",
		Title:     "你好",
		CreatedAt: base.Add(time.Minute),
	}
	s.Require().NoError(s.repo.Save(ctx, inbound))

	// 方向过滤走慢路径
	page, err := s.repo.List(ctx, ListFilter{Direction: domain.DirectionInbound}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, page.Total)
	s.Equal("5002", page.Messages[0].ID)

	// 多维组合过滤
	page, err = s.repo.List(ctx, ListFilter{ChannelID: "ch1", AppID: "app1"}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, page.Total)
	s.Equal("5001", page.Messages[0].ID)

	// 时间范围过滤
	page, err = s.repo.List(ctx, ListFilter{
		StartTime: base.Add(30 * time.Second),
		EndTime:   base.Add(2 * time.Minute),
	}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, page.Total)
	s.Equal("5002", page.Messages[0].ID)
}

func (s *HistoryRepositoryTestSuite) TestDelete() {
	ctx := context.Background()
	msg := s.newMessage("6001", time.Now())
	s.Require().NoError(s.repo.Save(ctx, msg))

	s.Require().NoError(s.repo.Delete(ctx, "6001"))

	_, err := s.repo.Get(ctx, "6001")
	s.ErrorIs(err, errs.ErrMessageNotFound)

	page, err := s.repo.List(ctx, ListFilter{}, 1, 10)
	s.Require().NoError(err)
	s.Equal(0, page.Total)

	// 删除不存在的消息不算错误
	s.NoError(s.repo.Delete(ctx, "6001"))
}

func (s *HistoryRepositoryTestSuite) TestCleanup() {
	ctx := context.Background()

	old := s.newMessage("7001", time.Now().AddDate(0, 0, -10))
	fresh := s.newMessage("7002", time.Now())
	s.Require().NoError(s.repo.Save(ctx, old))
	s.Require().NoError(s.repo.Save(ctx, fresh))

	deleted, err := s.repo.Cleanup(ctx, 7)
	s.Require().NoError(err)
	s.Equal(1, deleted)

	_, err = s.repo.Get(ctx, "7001")
	s.ErrorIs(err, errs.ErrMessageNotFound)
	_, err = s.repo.Get(ctx, "7002")
	s.NoError(err)

	_, err = s.repo.Cleanup(ctx, 0)
	s.ErrorIs(err, errs.ErrInvalidParameter)
}

func (s *HistoryRepositoryTestSuite) TestStats() {
	ctx := context.Background()

	sent := s.newMessage("8001", time.Now())
	sent.Results = []domain.DeliveryResult{
		{OpenID: "openid-1", Success: true},
		{OpenID: "openid-2", Success: false, Error: "用户未关注公众号"},
	}
	s.Require().NoError(s.repo.Save(ctx, sent))

	inbound := domain.Message{
		ID:        "8002",
		Direction: domain.DirectionInbound,
		Type:      "text",
		ChannelID: "ch1",
		OpenID:    "openid-1",
		Title:     "你好",
		CreatedAt: time.Now().AddDate(0, 0, -1),
	}
	s.Require().NoError(s.repo.Save(ctx, inbound))

	stats, err := s.repo.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.Total)
	s.Equal(1, stats.Today)
	s.Equal(1, stats.Inbound)
	s.Equal(1, stats.Outbound)
	s.Equal(1, stats.Success)
	s.Equal(1, stats.Failed)
}

// TestConcurrentSaves 验证并发写入时消息本体永不丢失。
// 列表索引是无事务的读改写，并发下允许少记，本体存储必须完整。
func (s *HistoryRepositoryTestSuite) TestConcurrentSaves() {
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := s.newMessage(fmt.Sprintf("%d", 9000+i), time.Now())
			s.Require().NoError(s.repo.Save(ctx, msg))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		_, err := s.repo.Get(ctx, fmt.Sprintf("%d", 9000+i))
		s.Require().NoError(err)
	}

	page, err := s.repo.List(ctx, ListFilter{AppID: "app1"}, 1, n)
	s.Require().NoError(err)
	s.LessOrEqual(page.Total, n)
	s.Positive(page.Total)
}

func TestHistoryRepositoryTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(HistoryRepositoryTestSuite))
}
