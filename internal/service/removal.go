package service

import (
	"context"
	"fmt"

	"github.com/StoryBB/StoryBB-sub002/internal/core/audit"
	"github.com/StoryBB/StoryBB-sub002/internal/core/event"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/intset"
	"github.com/StoryBB/StoryBB-sub002/internal/repository"
)

// RemovalService 主题和帖子的删除与恢复
// 第一次删除为软删除（deleted=1 作者本人，2 管理人员），对已软删除的对象再次删除才真正移除
type RemovalService struct {
	topics     repository.TopicRepository
	boards     repository.BoardRepository
	stats      repository.StatsRepository
	members    repository.GroupHolderRepository
	characters repository.GroupHolderRepository
	statsSvc   *StatsService
	audit      audit.Sink
	events     event.Bus
}

// NewRemovalService 创建 RemovalService 实例
func NewRemovalService(
	topics repository.TopicRepository,
	boards repository.BoardRepository,
	stats repository.StatsRepository,
	members, characters repository.GroupHolderRepository,
	statsSvc *StatsService,
	auditSink audit.Sink,
	events event.Bus,
) *RemovalService {
	return &RemovalService{
		topics:     topics,
		boards:     boards,
		stats:      stats,
		members:    members,
		characters: characters,
		statsSvc:   statsSvc,
		audit:      auditSink,
		events:     events,
	}
}

// deletedBy 删除者是否为作者本人决定删除标记
func deletedBy(actor *model.Actor, owner int) int {
	if actor != nil && actor.MemberID != 0 && actor.MemberID == owner {
		return model.DeletedByOwner
	}
	return model.DeletedByModerator
}

// RemoveTopics 删除主题
// 未删除的主题先软删除；已软删除的主题或 ignoreSoftDelete 时直接物理删除
// updateBoardCount 为 true 时物理删除会扣减版块计数
func (s *RemovalService) RemoveTopics(ctx context.Context, actor *model.Actor, topicIDs []int,
	decreasePostCount, ignoreSoftDelete, updateBoardCount bool) error {
	ids := intset.New()
	for _, id := range topicIDs {
		if id > 0 {
			ids.Add(id)
		}
	}
	if ids.Len() == 0 {
		return nil
	}
	topics, err := s.topics.GetTopics(ctx, ids.Slice())
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return nil
	}

	var soft, hard []*model.Topic
	for _, t := range topics {
		if !ignoreSoftDelete && t.Deleted == model.NotDeleted {
			soft = append(soft, t)
		} else {
			hard = append(hard, t)
		}
	}

	if len(soft) > 0 {
		if err := s.softDeleteTopics(ctx, actor, soft, decreasePostCount); err != nil {
			return err
		}
	}
	if len(hard) > 0 {
		if err := s.hardDeleteTopics(ctx, actor, hard, decreasePostCount, updateBoardCount); err != nil {
			return err
		}
	}
	return nil
}

func (s *RemovalService) softDeleteTopics(ctx context.Context, actor *model.Actor, topics []*model.Topic, decreasePostCount bool) error {
	ids, boards := topicKeys(topics)

	// 帖数按删除前的状态扣减
	if decreasePostCount {
		if err := s.adjustPosterCounts(ctx, ids, -1); err != nil {
			return err
		}
	}
	for _, t := range topics {
		if err := s.topics.MarkTopicDeleted(ctx, t, deletedBy(actor, t.MemberStarted)); err != nil {
			return err
		}
	}
	if err := s.topics.CloseReports(ctx, ids); err != nil {
		return err
	}
	if err := s.refresh(ctx, ids, boards); err != nil {
		return err
	}

	for _, t := range topics {
		s.log(ctx, actor, "remove", map[string]interface{}{"topic": t.ID, "board": t.Board, "soft": true})
	}
	s.events.Fire(ctx, event.TopicsRemoved, map[string]interface{}{"topics": ids, "soft": true})
	logger.Info("topics soft deleted", logger.Ints("topics", ids), logger.Ints("boards", boards))
	return nil
}

func (s *RemovalService) hardDeleteTopics(ctx context.Context, actor *model.Actor, topics []*model.Topic,
	decreasePostCount, updateBoardCount bool) error {
	ids, boards := topicKeys(topics)

	if decreasePostCount {
		// 已软删除的主题在软删除时扣过帖数
		var live []int
		for _, t := range topics {
			if t.Deleted == model.NotDeleted {
				live = append(live, t.ID)
			}
		}
		if err := s.adjustPosterCounts(ctx, live, -1); err != nil {
			return err
		}
	}

	if updateBoardCount {
		posts, err := s.stats.PostCountsForTopics(ctx, ids)
		if err != nil {
			return err
		}
		counts, err := s.stats.TopicCountsForTopics(ctx, ids)
		if err != nil {
			return err
		}
		for _, b := range boards {
			if err := s.stats.SubtractBoardCounters(ctx, b, mergeCounters(posts[b], counts[b])); err != nil {
				return err
			}
		}
	}

	polls, err := s.topics.PollIDs(ctx, ids)
	if err != nil {
		return err
	}
	if err := s.topics.DeletePolls(ctx, polls); err != nil {
		return err
	}
	msgs, err := s.topics.MessageIDs(ctx, ids)
	if err != nil {
		return err
	}
	attachments, err := s.topics.DeleteAttachments(ctx, msgs)
	if err != nil {
		return err
	}
	if err := s.topics.DeleteSearchWords(ctx, msgs); err != nil {
		return err
	}
	if err := s.topics.DeleteTopicRows(ctx, ids); err != nil {
		return err
	}
	if _, err := s.statsSvc.UpdateLastMessages(ctx, boards); err != nil {
		return err
	}

	for _, t := range topics {
		s.log(ctx, actor, "remove", map[string]interface{}{"topic": t.ID, "board": t.Board, "soft": false})
	}
	s.events.Fire(ctx, event.TopicsRemoved, map[string]interface{}{"topics": ids, "soft": false})
	logger.Info("topics deleted",
		logger.Ints("topics", ids),
		logger.Int("messages", len(msgs)),
		logger.Int("polls", len(polls)),
		logger.Int64("attachments", attachments))
	return nil
}

// RestoreTopics 恢复软删除的主题并重新计算统计
func (s *RemovalService) RestoreTopics(ctx context.Context, actor *model.Actor, topicIDs []int, increasePostCount bool) error {
	if len(topicIDs) == 0 {
		return nil
	}
	all, err := s.topics.GetTopics(ctx, intset.New(topicIDs...).Slice())
	if err != nil {
		return err
	}
	var topics []*model.Topic
	for _, t := range all {
		if t.Deleted != model.NotDeleted {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return nil
	}
	ids, boards := topicKeys(topics)

	for _, t := range topics {
		if err := s.topics.RestoreTopic(ctx, t); err != nil {
			return err
		}
	}
	if increasePostCount {
		if err := s.adjustPosterCounts(ctx, ids, 1); err != nil {
			return err
		}
	}
	if err := s.refresh(ctx, ids, boards); err != nil {
		return err
	}

	for _, t := range topics {
		s.log(ctx, actor, "restore_topic", map[string]interface{}{"topic": t.ID, "board": t.Board})
	}
	s.events.Fire(ctx, event.TopicsRestored, map[string]interface{}{"topics": ids})
	logger.Info("topics restored", logger.Ints("topics", ids))
	return nil
}

// RemoveMessage 删除单个帖子，帖子不存在时返回 false
// 主题只剩这一个帖子时删除整个主题；有回复的首帖不能单独删除
func (s *RemovalService) RemoveMessage(ctx context.Context, actor *model.Actor, msgID int, decreasePostCount bool) (bool, error) {
	m, err := s.topics.GetMessage(ctx, msgID)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}

	isFirst := m.ID == m.FirstMsg
	own := actor != nil && actor.MemberID != 0 && actor.MemberID == m.Member
	var allowed bool
	if isFirst {
		allowed = actor.Allowed(model.PermRemoveAny) || (own && actor.Allowed(model.PermRemoveOwn))
	} else {
		allowed = actor.Allowed(model.PermDeleteAny) || (own && actor.Allowed(model.PermDeleteOwn))
	}
	if !allowed {
		return false, apperr.ErrForbidden
	}

	if isFirst {
		other, _, err := s.topics.NewestLiveMessage(ctx, m.Topic, m.ID)
		if err != nil {
			return false, err
		}
		if other != 0 {
			return false, apperr.New(apperr.ErrMessageIsFirst, fmt.Sprintf("message %d of topic %d", m.ID, m.Topic))
		}
		if err := s.RemoveTopics(ctx, actor, []int{m.Topic}, decreasePostCount, false, true); err != nil {
			return false, err
		}
		return true, nil
	}

	if m.Deleted == model.NotDeleted {
		return true, s.softDeleteMessage(ctx, actor, m, decreasePostCount)
	}
	return true, s.hardDeleteMessage(ctx, actor, m)
}

func (s *RemovalService) softDeleteMessage(ctx context.Context, actor *model.Actor, m *model.MessageWithTopic, decreasePostCount bool) error {
	if decreasePostCount && m.Approved == 1 && m.TopicDeleted == model.NotDeleted {
		board, err := s.boards.GetByID(ctx, m.TopicBoard)
		if err != nil {
			return err
		}
		if board != nil && board.CountsPosts() {
			if err := s.members.AdjustPosts(ctx, map[int]int{m.Member: -1}); err != nil {
				return err
			}
			if err := s.characters.AdjustPosts(ctx, map[int]int{m.Character: -1}); err != nil {
				return err
			}
		}
	}

	if err := s.topics.SetMessageDeleted(ctx, m.ID, deletedBy(actor, m.Member)); err != nil {
		return err
	}
	replies, unapproved := -1, 0
	if m.Approved == 0 {
		replies, unapproved = 0, -1
	}
	if err := s.topics.AdjustTopicCounters(ctx, m.Topic, replies, unapproved); err != nil {
		return err
	}
	if m.ID == m.LastMsg {
		last, member, err := s.topics.NewestLiveMessage(ctx, m.Topic, m.ID)
		if err != nil {
			return err
		}
		if err := s.topics.SetTopicLastMessage(ctx, m.Topic, last, member); err != nil {
			return err
		}
	}
	if err := s.refreshBoards(ctx, []int{m.TopicBoard}); err != nil {
		return err
	}

	s.log(ctx, actor, "delete", map[string]interface{}{"message": m.ID, "topic": m.Topic, "soft": true})
	s.events.Fire(ctx, event.MessageRemoved, map[string]interface{}{"message": m.ID, "topic": m.Topic, "soft": true})
	logger.Info("message soft deleted", logger.Int("message", m.ID), logger.Int("topic", m.Topic))
	return nil
}

func (s *RemovalService) hardDeleteMessage(ctx context.Context, actor *model.Actor, m *model.MessageWithTopic) error {
	ids := []int{m.ID}
	if _, err := s.topics.DeleteAttachments(ctx, ids); err != nil {
		return err
	}
	if err := s.topics.DeleteSearchWords(ctx, ids); err != nil {
		return err
	}
	if err := s.topics.DeleteMessageRows(ctx, ids); err != nil {
		return err
	}
	if err := s.refreshBoards(ctx, []int{m.TopicBoard}); err != nil {
		return err
	}

	s.log(ctx, actor, "delete", map[string]interface{}{"message": m.ID, "topic": m.Topic, "soft": false})
	s.events.Fire(ctx, event.MessageRemoved, map[string]interface{}{"message": m.ID, "topic": m.Topic, "soft": false})
	logger.Info("message deleted", logger.Int("message", m.ID), logger.Int("topic", m.Topic))
	return nil
}

// adjustPosterCounts 按主题中计数的帖子调整账号和角色帖数，sign 为 -1 或 1
func (s *RemovalService) adjustPosterCounts(ctx context.Context, topics []int, sign int) error {
	if len(topics) == 0 {
		return nil
	}
	rows, err := s.topics.PosterCounts(ctx, topics)
	if err != nil {
		return err
	}
	members := map[int]int{}
	characters := map[int]int{}
	for _, r := range rows {
		members[r.Member] += sign * r.Posts
		characters[r.Character] += sign * r.Posts
	}
	if err := s.members.AdjustPosts(ctx, members); err != nil {
		return err
	}
	return s.characters.AdjustPosts(ctx, characters)
}

func (s *RemovalService) refresh(ctx context.Context, topics, boards []int) error {
	if _, err := s.statsSvc.UpdateTopicStats(ctx, topics); err != nil {
		return err
	}
	return s.refreshBoards(ctx, boards)
}

func (s *RemovalService) refreshBoards(ctx context.Context, boards []int) error {
	if _, err := s.statsSvc.UpdateBoardStats(ctx, boards); err != nil {
		return err
	}
	_, err := s.statsSvc.UpdateLastMessages(ctx, boards)
	return err
}

func (s *RemovalService) log(ctx context.Context, actor *model.Actor, action string, extra map[string]interface{}) {
	actorID := 0
	if actor != nil {
		actorID = actor.MemberID
	}
	if err := s.audit.Log(ctx, action, actorID, extra); err != nil {
		logger.Warn("audit log failed", logger.String("action", action), logger.ErrorField(err))
	}
}

// topicKeys 主题 id 与去重后的版块 id
func topicKeys(topics []*model.Topic) ([]int, []int) {
	ids := make([]int, 0, len(topics))
	boards := intset.New()
	for _, t := range topics {
		ids = append(ids, t.ID)
		boards.Add(t.Board)
	}
	return ids, boards.Slice()
}
