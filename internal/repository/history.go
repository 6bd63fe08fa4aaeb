package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"gitee.com/flycash/wepush/internal/domain"
	"gitee.com/flycash/wepush/internal/errs"
	"gitee.com/flycash/wepush/internal/pkg/kv"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gotomicro/ego/core/elog"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// HistoryConfig 历史索引的运维参数。各列表的长度上限和全量扫描的批大小
// 都是调优常量而非契约，按部署规模调整。
type HistoryConfig struct {
	GlobalCap    int `yaml:"globalCap"`
	ChannelCap   int `yaml:"channelCap"`
	AppCap       int `yaml:"appCap"`
	RecipientCap int `yaml:"recipientCap"`
	ScanBatch    int `yaml:"scanBatch"`
}

func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		GlobalCap:    10000,
		ChannelCap:   5000,
		AppCap:       5000,
		RecipientCap: 1000,
		ScanBatch:    50,
	}
}

// ListFilter 历史查询过滤条件
type ListFilter struct {
	ChannelID string
	AppID     string
	OpenID    string
	Direction domain.Direction
	StartTime time.Time
	EndTime   time.Time
}

// MessagePage 分页查询结果
type MessagePage struct {
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// HistoryStats 历史消息统计
type HistoryStats struct {
	Total    int `json:"total"`
	Today    int `json:"today"`
	Inbound  int `json:"inbound"`
	Outbound int `json:"outbound"`
	Success  int `json:"success"`
	Failed   int `json:"failed"`
}

// HistoryRepository 消息历史仓储。
// 消息本体按 ID 存储；全局、渠道、应用、用户四类定长列表充当二级索引，
// 每次写入并发地前插并截断。列表更新是读改写，底层没有事务，
// 并发推送可能互相覆盖丢失一次更新——这是既有语义，换取写入吞吐。
type HistoryRepository interface {
	// Save 写入消息本体并更新所有适用的列表索引。
	// 只有本体写入失败才返回错误，索引更新失败仅记录日志。
	Save(ctx context.Context, msg domain.Message) error
	Get(ctx context.Context, id string) (domain.Message, error)
	List(ctx context.Context, filter ListFilter, page, pageSize int) (MessagePage, error)
	ListByApp(ctx context.Context, appID string, page, pageSize int) (MessagePage, error)
	ListByChannel(ctx context.Context, channelID string, page, pageSize int) (MessagePage, error)
	ListByOpenID(ctx context.Context, openID string, page, pageSize int) (MessagePage, error)
	Delete(ctx context.Context, id string) error
	// Cleanup 删除早于保留期的消息，返回删除条数
	Cleanup(ctx context.Context, retentionDays int) (int, error)
	Stats(ctx context.Context) (HistoryStats, error)
}

type historyRepository struct {
	store  kv.Store
	cfg    HistoryConfig
	logger *elog.Component
}

func NewHistoryRepository(store kv.Store, cfg HistoryConfig) HistoryRepository {
	if cfg.ScanBatch <= 0 {
		cfg = DefaultHistoryConfig()
	}
	return &historyRepository{
		store:  store,
		cfg:    cfg,
		logger: elog.DefaultLogger,
	}
}

type indexTarget struct {
	key string
	cap int
}

// indexTargets 计算一条消息应落入哪些列表索引
func (r *historyRepository) indexTargets(msg domain.Message) []indexTarget {
	targets := []indexTarget{{key: listGlobalKey, cap: r.cfg.GlobalCap}}
	if msg.ChannelID != "" {
		targets = append(targets, indexTarget{key: listChannelKey(msg.ChannelID), cap: r.cfg.ChannelCap})
	}
	if msg.AppID != "" {
		targets = append(targets, indexTarget{key: listAppKey(msg.AppID), cap: r.cfg.AppCap})
	}
	if msg.OpenID != "" {
		targets = append(targets, indexTarget{key: listRecipientKey(msg.OpenID), cap: r.cfg.RecipientCap})
	}
	return targets
}

func (r *historyRepository) Save(ctx context.Context, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := r.store.Put(ctx, messageKey(msg.ID), data, 0); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}

	// 并发更新所有列表索引，不让索引写入拖慢推送主路径。
	// 索引是尽力而为的：某个索引失败时消息本体已存在，只是在该索引的查询中不可见。
	targets := r.indexTargets(msg)
	var mu sync.Mutex
	var indexErr error
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		t := target
		go func() {
			defer wg.Done()
			if err1 := r.appendToList(ctx, t.key, msg.ID, t.cap); err1 != nil {
				mu.Lock()
				indexErr = multierror.Append(indexErr, fmt.Errorf("索引 %s: %w", t.key, err1))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if indexErr != nil {
		r.logger.Warn("消息索引更新失败",
			elog.String("msgId", msg.ID),
			elog.FieldErr(indexErr),
		)
	}
	return nil
}

// appendToList 定长列表的前插截断：读出当前列表，新 ID 插到头部，
// 超过上限时丢弃最旧的尾部，再整体写回
func (r *historyRepository) appendToList(ctx context.Context, key, id string, capacity int) error {
	ids, err := r.readList(ctx, key)
	if err != nil {
		return err
	}

	ids = append([]string{id}, ids...)
	if len(ids) > capacity {
		ids = ids[:capacity]
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("序列化索引列表失败: %w", err)
	}
	return r.store.Put(ctx, key, data, 0)
}

func (r *historyRepository) readList(ctx context.Context, key string) ([]string, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("反序列化索引列表失败: %w", err)
	}
	return ids, nil
}

func (r *historyRepository) Get(ctx context.Context, id string) (domain.Message, error) {
	data, err := r.store.Get(ctx, messageKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return domain.Message{}, fmt.Errorf("%w: id = %s", errs.ErrMessageNotFound, id)
		}
		return domain.Message{}, err
	}

	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.Message{}, fmt.Errorf("反序列化消息失败: %w", err)
	}
	return msg, nil
}

// chooseIndex 为过滤条件挑选最具体的可用索引，优先级：用户 > 应用 > 渠道 > 全局
func (r *historyRepository) chooseIndex(filter ListFilter) string {
	switch {
	case filter.OpenID != "":
		return listRecipientKey(filter.OpenID)
	case filter.AppID != "":
		return listAppKey(filter.AppID)
	case filter.ChannelID != "":
		return listChannelKey(filter.ChannelID)
	default:
		return listGlobalKey
	}
}

// needsScan 判断选中的索引能否完全满足过滤条件。
// 方向、时间范围，或多个维度组合时，索引只能当作候选集，
// 需要全量拉取后在内存中补充过滤。
func needsScan(filter ListFilter) bool {
	if filter.Direction != "" || !filter.StartTime.IsZero() || !filter.EndTime.IsZero() {
		return true
	}
	dims := 0
	for _, dim := range []string{filter.OpenID, filter.AppID, filter.ChannelID} {
		if dim != "" {
			dims++
		}
	}
	return dims > 1
}

func (r *historyRepository) List(ctx context.Context, filter ListFilter, page, pageSize int) (MessagePage, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	ids, err := r.readList(ctx, r.chooseIndex(filter))
	if err != nil {
		return MessagePage{}, err
	}

	if !needsScan(filter) {
		// 快路径：索引完全匹配过滤条件，只取当前页的消息本体
		total := len(ids)
		pageIDs := paginate(ids, page, pageSize)
		msgs, err := r.fetchMessages(ctx, pageIDs)
		if err != nil {
			return MessagePage{}, err
		}
		return MessagePage{Messages: msgs, Total: total, Page: page, PageSize: pageSize}, nil
	}

	// 慢路径：拉取索引引用的全部消息，内存过滤后再分页
	msgs, err := r.fetchMessages(ctx, ids)
	if err != nil {
		return MessagePage{}, err
	}

	filtered := make([]domain.Message, 0, len(msgs))
	for i := range msgs {
		if matchFilter(msgs[i], filter) {
			filtered = append(filtered, msgs[i])
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	pageMsgs := paginate(filtered, page, pageSize)
	return MessagePage{Messages: pageMsgs, Total: total, Page: page, PageSize: pageSize}, nil
}

// 单维度查询直接命中对应索引的快路径
func (r *historyRepository) ListByApp(ctx context.Context, appID string, page, pageSize int) (MessagePage, error) {
	return r.List(ctx, ListFilter{AppID: appID}, page, pageSize)
}

func (r *historyRepository) ListByChannel(ctx context.Context, channelID string, page, pageSize int) (MessagePage, error) {
	return r.List(ctx, ListFilter{ChannelID: channelID}, page, pageSize)
}

func (r *historyRepository) ListByOpenID(ctx context.Context, openID string, page, pageSize int) (MessagePage, error) {
	return r.List(ctx, ListFilter{OpenID: openID}, page, pageSize)
}

func matchFilter(msg domain.Message, filter ListFilter) bool {
	if filter.ChannelID != "" && msg.ChannelID != filter.ChannelID {
		return false
	}
	if filter.AppID != "" && msg.AppID != filter.AppID {
		return false
	}
	if filter.OpenID != "" && msg.OpenID != filter.OpenID {
		return false
	}
	if filter.Direction != "" && msg.Direction != filter.Direction {
		return false
	}
	if !filter.StartTime.IsZero() && msg.CreatedAt.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && msg.CreatedAt.After(filter.EndTime) {
		return false
	}
	return true
}

func paginate[T any](items []T, page, pageSize int) []T {
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// fetchMessages 按批大小分块、块内并发地批量取回消息本体，
// 避免对底层存储产生无界的并发请求。索引里指向已删除消息的 ID 被跳过。
func (r *historyRepository) fetchMessages(ctx context.Context, ids []string) ([]domain.Message, error) {
	msgs := make([]domain.Message, len(ids))
	for start := 0; start < len(ids); start += r.cfg.ScanBatch {
		end := start + r.cfg.ScanBatch
		if end > len(ids) {
			end = len(ids)
		}

		eg, egCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			idx := i
			eg.Go(func() error {
				msg, err := r.Get(egCtx, ids[idx])
				if err != nil {
					if errors.Is(err, errs.ErrMessageNotFound) {
						return nil
					}
					return err
				}
				msgs[idx] = msg
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	result := make([]domain.Message, 0, len(msgs))
	for i := range msgs {
		if msgs[i].ID != "" {
			result = append(result, msgs[i])
		}
	}
	return result, nil
}

func (r *historyRepository) Delete(ctx context.Context, id string) error {
	msg, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrMessageNotFound) {
			return nil
		}
		return err
	}

	if err := r.store.Del(ctx, messageKey(id)); err != nil {
		return err
	}

	// 尽力把 ID 从各列表索引中摘除，失败时读路径也能容忍悬空 ID
	for _, target := range r.indexTargets(msg) {
		if err1 := r.removeFromList(ctx, target.key, id); err1 != nil {
			r.logger.Warn("从索引移除消息失败",
				elog.String("msgId", id),
				elog.String("index", target.key),
				elog.FieldErr(err1),
			)
		}
	}
	return nil
}

func (r *historyRepository) removeFromList(ctx context.Context, key, id string) error {
	ids, err := r.readList(ctx, key)
	if err != nil {
		return err
	}

	kept := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(ids) {
		return nil
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("序列化索引列表失败: %w", err)
	}
	return r.store.Put(ctx, key, data, 0)
}

func (r *historyRepository) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("%w: retentionDays = %d", errs.ErrInvalidParameter, retentionDays)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	msgs, err := r.scanAll(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i := range msgs {
		if msgs[i].CreatedAt.Before(cutoff) {
			if err := r.Delete(ctx, msgs[i].ID); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}

func (r *historyRepository) Stats(ctx context.Context) (HistoryStats, error) {
	msgs, err := r.scanAll(ctx)
	if err != nil {
		return HistoryStats{}, err
	}

	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := HistoryStats{Total: len(msgs)}
	for i := range msgs {
		msg := &msgs[i]
		if !msg.CreatedAt.Before(todayStart) {
			stats.Today++
		}
		switch msg.Direction {
		case domain.DirectionInbound:
			stats.Inbound++
		case domain.DirectionOutbound:
			stats.Outbound++
		}
		success := msg.SuccessCount()
		stats.Success += success
		stats.Failed += len(msg.Results) - success
	}
	return stats, nil
}

// scanAll 按前缀列举全部消息键并分批取回
func (r *historyRepository) scanAll(ctx context.Context) ([]domain.Message, error) {
	keys, err := r.store.Keys(ctx, messageKeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := slice.Map(keys, func(_ int, key string) string {
		return key[len(messageKeyPrefix):]
	})
	return r.fetchMessages(ctx, ids)
}
