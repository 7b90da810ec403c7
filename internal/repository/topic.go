package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/StoryBB/StoryBB-sub002/internal/model"

	"github.com/jmoiron/sqlx"
)

// PosterCount 某发帖人在一组主题中的帖子数
type PosterCount struct {
	Member    int `db:"id_member"`
	Character int `db:"id_character"`
	Posts     int `db:"posts"`
}

// TopicRepository 主题与帖子数据访问接口
type TopicRepository interface {
	GetTopics(ctx context.Context, ids []int) ([]*model.Topic, error)
	TopicIDsInBoards(ctx context.Context, boards []int) ([]int, error)
	MarkTopicDeleted(ctx context.Context, t *model.Topic, deleted int) error
	RestoreTopic(ctx context.Context, t *model.Topic) error
	CloseReports(ctx context.Context, topics []int) error
	PosterCounts(ctx context.Context, topics []int) ([]PosterCount, error)
	MessageIDs(ctx context.Context, topics []int) ([]int, error)
	PollIDs(ctx context.Context, topics []int) ([]int, error)
	DeletePolls(ctx context.Context, polls []int) error
	DeleteAttachments(ctx context.Context, msgs []int) (int64, error)
	DeleteSearchWords(ctx context.Context, msgs []int) error
	// DeleteTopicRows 删除主题及其帖子、已读、订阅、搜索主题词
	DeleteTopicRows(ctx context.Context, topics []int) error

	GetMessage(ctx context.Context, id int) (*model.MessageWithTopic, error)
	SetMessageDeleted(ctx context.Context, id, deleted int) error
	AdjustTopicCounters(ctx context.Context, topic, replies, unapproved int) error
	// NewestLiveMessage 主题中最新的未删除帖子，优先已审核的
	NewestLiveMessage(ctx context.Context, topic, exclude int) (msg, member int, err error)
	SetTopicLastMessage(ctx context.Context, topic, msg, member int) error
	DeleteMessageRows(ctx context.Context, msgs []int) error
}

type topicRepository struct {
	db *sqlx.DB
}

// NewTopicRepository 创建 TopicRepository 实例
func NewTopicRepository(db *sqlx.DB) TopicRepository {
	return &topicRepository{db: db}
}

const topicColumns = `id_topic, id_board, id_first_msg, id_last_msg, id_member_started, id_member_updated,
	num_replies, unapproved_posts, approved, is_sticky, deleted, id_poll`

// GetTopics 按 id 获取主题
func (r *topicRepository) GetTopics(ctx context.Context, ids []int) ([]*model.Topic, error) {
	return selectIn[*model.Topic](ctx, r.db, "SELECT "+topicColumns+" FROM topics WHERE id_topic IN (?) ORDER BY id_topic", ids)
}

// TopicIDsInBoards 版块下的全部主题
func (r *topicRepository) TopicIDsInBoards(ctx context.Context, boards []int) ([]int, error) {
	return selectIn[int](ctx, r.db, "SELECT id_topic FROM topics WHERE id_board IN (?) ORDER BY id_topic", boards)
}

// MarkTopicDeleted 软删除主题及其首帖，同时取消置顶
func (r *topicRepository) MarkTopicDeleted(ctx context.Context, t *model.Topic, deleted int) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE topics SET deleted = ?, is_sticky = 0 WHERE id_topic = ?", deleted, t.ID); err != nil {
		return fmt.Errorf("soft delete topic %d: %w", t.ID, err)
	}
	if _, err := r.db.ExecContext(ctx,
		"UPDATE messages SET deleted = ? WHERE id_msg = ?", deleted, t.FirstMsg); err != nil {
		return fmt.Errorf("soft delete first message %d: %w", t.FirstMsg, err)
	}
	return nil
}

// RestoreTopic 恢复软删除的主题及其首帖
func (r *topicRepository) RestoreTopic(ctx context.Context, t *model.Topic) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE topics SET deleted = 0 WHERE id_topic = ?", t.ID); err != nil {
		return fmt.Errorf("restore topic %d: %w", t.ID, err)
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE messages SET deleted = 0 WHERE id_msg = ?", t.FirstMsg); err != nil {
		return fmt.Errorf("restore first message %d: %w", t.FirstMsg, err)
	}
	return nil
}

// CloseReports 关闭涉及这些主题的举报
func (r *topicRepository) CloseReports(ctx context.Context, topics []int) error {
	_, err := execIn(ctx, r.db, "UPDATE log_reported SET closed = 1 WHERE closed = 0 AND id_topic IN (?)", topics)
	return err
}

// PosterCounts 计入帖数的已审核帖子，按发帖人汇总
func (r *topicRepository) PosterCounts(ctx context.Context, topics []int) ([]PosterCount, error) {
	rows, err := selectIn[PosterCount](ctx, r.db, `SELECT m.id_member, m.id_character, COUNT(*) AS posts
		FROM messages m
		INNER JOIN topics t ON t.id_topic = m.id_topic
		INNER JOIN boards b ON b.id_board = t.id_board
		WHERE b.count_posts = 0 AND m.approved = 1 AND m.deleted = 0 AND m.id_topic IN (?)
		GROUP BY m.id_member, m.id_character`, topics)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MessageIDs 主题下全部帖子 id
func (r *topicRepository) MessageIDs(ctx context.Context, topics []int) ([]int, error) {
	return selectIn[int](ctx, r.db, "SELECT id_msg FROM messages WHERE id_topic IN (?) ORDER BY id_msg", topics)
}

// PollIDs 主题关联的投票
func (r *topicRepository) PollIDs(ctx context.Context, topics []int) ([]int, error) {
	return selectIn[int](ctx, r.db, "SELECT id_poll FROM topics WHERE id_poll != 0 AND id_topic IN (?)", topics)
}

// DeletePolls 删除投票、选项和投票记录
func (r *topicRepository) DeletePolls(ctx context.Context, polls []int) error {
	for _, q := range []string{
		"DELETE FROM log_polls WHERE id_poll IN (?)",
		"DELETE FROM poll_choices WHERE id_poll IN (?)",
		"DELETE FROM polls WHERE id_poll IN (?)",
	} {
		if _, err := execIn(ctx, r.db, q, polls); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAttachments 删除帖子附件记录
func (r *topicRepository) DeleteAttachments(ctx context.Context, msgs []int) (int64, error) {
	return execIn(ctx, r.db, "DELETE FROM attachments WHERE id_msg IN (?)", msgs)
}

// DeleteSearchWords 从全文索引中移除帖子
func (r *topicRepository) DeleteSearchWords(ctx context.Context, msgs []int) error {
	_, err := execIn(ctx, r.db, "DELETE FROM log_search_words WHERE id_msg IN (?)", msgs)
	return err
}

// DeleteTopicRows 删除主题相关的全部行
func (r *topicRepository) DeleteTopicRows(ctx context.Context, topics []int) error {
	for _, q := range []string{
		"DELETE FROM messages WHERE id_topic IN (?)",
		"DELETE FROM log_topics WHERE id_topic IN (?)",
		"DELETE FROM log_notify WHERE id_topic IN (?)",
		"DELETE FROM log_search_subjects WHERE id_topic IN (?)",
		"DELETE FROM topics WHERE id_topic IN (?)",
	} {
		if _, err := execIn(ctx, r.db, q, topics); err != nil {
			return err
		}
	}
	return nil
}

// GetMessage 获取帖子及其主题信息，不存在返回 nil
func (r *topicRepository) GetMessage(ctx context.Context, id int) (*model.MessageWithTopic, error) {
	var m model.MessageWithTopic
	err := r.db.GetContext(ctx, &m, `SELECT m.id_msg, m.id_topic, m.id_board, m.id_member, m.id_character,
			m.subject, m.approved, m.deleted, m.poster_time,
			t.id_board AS topic_board, t.id_first_msg, t.id_last_msg, t.num_replies, t.id_member_started,
			t.deleted AS topic_deleted
		FROM messages m
		INNER JOIN topics t ON t.id_topic = m.id_topic
		WHERE m.id_msg = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	return &m, nil
}

// SetMessageDeleted 修改帖子删除状态
func (r *topicRepository) SetMessageDeleted(ctx context.Context, id, deleted int) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE messages SET deleted = ? WHERE id_msg = ?", deleted, id); err != nil {
		return fmt.Errorf("set message %d deleted: %w", id, err)
	}
	return nil
}

// AdjustTopicCounters 调整主题回复数和待审核数，结果不小于 0
func (r *topicRepository) AdjustTopicCounters(ctx context.Context, topic, replies, unapproved int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE topics SET
		num_replies = CASE WHEN num_replies + ? < 0 THEN 0 ELSE num_replies + ? END,
		unapproved_posts = CASE WHEN unapproved_posts + ? < 0 THEN 0 ELSE unapproved_posts + ? END
		WHERE id_topic = ?`, replies, replies, unapproved, unapproved, topic)
	if err != nil {
		return fmt.Errorf("adjust topic %d counters: %w", topic, err)
	}
	return nil
}

// NewestLiveMessage 最新的未删除帖子
func (r *topicRepository) NewestLiveMessage(ctx context.Context, topic, exclude int) (int, int, error) {
	var row struct {
		ID     int `db:"id_msg"`
		Member int `db:"id_member"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT id_msg, id_member FROM messages
		WHERE id_topic = ? AND id_msg != ? AND deleted = 0
		ORDER BY approved DESC, id_msg DESC
		LIMIT 1`, topic, exclude)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("newest message of topic %d: %w", topic, err)
	}
	return row.ID, row.Member, nil
}

// SetTopicLastMessage 写入主题最后帖子
func (r *topicRepository) SetTopicLastMessage(ctx context.Context, topic, msg, member int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE topics SET id_last_msg = ?, id_member_updated = ? WHERE id_topic = ?", msg, member, topic)
	if err != nil {
		return fmt.Errorf("set topic %d last message: %w", topic, err)
	}
	return nil
}

// DeleteMessageRows 删除帖子行
func (r *topicRepository) DeleteMessageRows(ctx context.Context, msgs []int) error {
	_, err := execIn(ctx, r.db, "DELETE FROM messages WHERE id_msg IN (?)", msgs)
	return err
}
