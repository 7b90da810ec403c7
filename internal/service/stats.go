package service

import (
	"context"
	"sort"
	"strconv"

	"github.com/StoryBB/StoryBB-sub002/internal/core/cache"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/intset"
	"github.com/StoryBB/StoryBB-sub002/internal/repository"
)

// StatsService 主题/版块/全站计数的重新聚合
// 所有方法只在存储值与推导值不一致时写入，返回改写的行数
type StatsService struct {
	boards repository.BoardRepository
	stats  repository.StatsRepository
	cache  cache.Invalidator
}

// NewStatsService 创建 StatsService 实例
func NewStatsService(boards repository.BoardRepository, stats repository.StatsRepository, inv cache.Invalidator) *StatsService {
	return &StatsService{boards: boards, stats: stats, cache: inv}
}

// UpdateTopicStats 由帖子重新计算主题的回复数和待审核数
func (s *StatsService) UpdateTopicStats(ctx context.Context, topics []int) (int, error) {
	if len(topics) == 0 {
		return 0, nil
	}
	rows, err := s.stats.TopicStatsFor(ctx, topics)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, row := range rows {
		want := row.Actual()
		if want == row.Stored() {
			continue
		}
		if err := s.stats.SetTopicCounters(ctx, row.Topic, want); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// UpdateBoardStats 由主题和帖子重新计算版块的六个计数
func (s *StatsService) UpdateBoardStats(ctx context.Context, boards []int) (int, error) {
	if len(boards) == 0 {
		return 0, nil
	}
	posts, err := s.stats.PostCountsForBoards(ctx, boards)
	if err != nil {
		return 0, err
	}
	topics, err := s.stats.TopicCountsForBoards(ctx, boards)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, id := range intset.New(boards...).Slice() {
		b, err := s.boards.GetByID(ctx, id)
		if err != nil {
			return changed, err
		}
		if b == nil {
			continue
		}
		want := mergeCounters(posts[id], topics[id])
		if want == b.Counters() {
			continue
		}
		if err := s.boards.SetCounters(ctx, id, want); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// mergeCounters 帖子计数取 posts，主题计数取 topics
func mergeCounters(posts, topics model.BoardCounters) model.BoardCounters {
	return model.BoardCounters{
		NumPosts:         posts.NumPosts,
		UnapprovedPosts:  posts.UnapprovedPosts,
		DeletedPosts:     posts.DeletedPosts,
		NumTopics:        topics.NumTopics,
		UnapprovedTopics: topics.UnapprovedTopics,
		DeletedTopics:    topics.DeletedTopics,
	}
}

// UpdateLastMessages 重新计算 id_last_msg，并按层级从深到浅把 id_msg_updated 传播到祖先
// boards 非 nil 时只写这些版块及其祖先
func (s *StatsService) UpdateLastMessages(ctx context.Context, boards []int) (int, error) {
	all, err := s.boards.ListBoards(ctx)
	if err != nil {
		return 0, err
	}
	last, err := s.stats.LastMessages(ctx)
	if err != nil {
		return 0, err
	}

	byID := make(map[int]*model.Board, len(all))
	for _, b := range all {
		byID[b.ID] = b
	}

	var only intset.Set
	if boards != nil {
		only = intset.New()
		for _, id := range boards {
			for b := byID[id]; b != nil; b = byID[b.Parent] {
				if only.Has(b.ID) {
					break
				}
				only.Add(b.ID)
			}
		}
	}

	sorted := append([]*model.Board(nil), all...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Level > sorted[j].Level
	})

	updated := make(map[int]int, len(all))
	changed := 0
	for _, b := range sorted {
		own := last[b.ID]
		eff := own
		if v := updated[b.ID]; v > eff {
			eff = v
		}
		if b.Parent != 0 && eff > updated[b.Parent] {
			updated[b.Parent] = eff
		}

		if only != nil && !only.Has(b.ID) {
			continue
		}
		if b.LastMsg == own && b.MsgUpdated == eff {
			continue
		}
		if err := s.boards.SetLastMessage(ctx, b.ID, own, eff); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// GlobalStats 读取已保存的全站统计，未统计过的项为 0
func (s *StatsService) GlobalStats(ctx context.Context) (map[string]int, error) {
	settings, err := s.stats.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, 3)
	for _, k := range []string{"totalTopics", "totalMessages", "maxMsgID"} {
		v := repository.SettingInt(settings, k)
		if v < 0 {
			v = 0
		}
		out[k] = v
	}
	return out, nil
}

// RefreshGlobalStats 更新全站主题数、帖子数和最大帖子 id
func (s *StatsService) RefreshGlobalStats(ctx context.Context) (int, error) {
	totals, err := s.stats.GlobalTotals(ctx)
	if err != nil {
		return 0, err
	}
	settings, err := s.stats.GetSettings(ctx)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changed := 0
	for _, k := range keys {
		if repository.SettingInt(settings, k) == totals[k] {
			continue
		}
		if err := s.stats.SetSetting(ctx, k, strconv.Itoa(totals[k])); err != nil {
			return changed, err
		}
		changed++
	}
	if changed > 0 {
		s.cache.Invalidate(ctx, cache.KeyGlobalStats)
		logger.Info("global stats refreshed",
			logger.Int("topics", totals["totalTopics"]),
			logger.Int("messages", totals["totalMessages"]),
			logger.Int("max_msg", totals["maxMsgID"]))
	}
	return changed, nil
}
