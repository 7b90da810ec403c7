package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/StoryBB/StoryBB-sub002/internal/model"

	"github.com/jmoiron/sqlx"
)

// 版块帖子计数：帖子按其主题所在版块归属，主题或帖子任一被删除即计入 deleted_posts
const boardPostCountsSQL = `SELECT t.id_board,
		SUM(CASE WHEN m.deleted = 0 AND t.deleted = 0 AND m.approved = 1 THEN 1 ELSE 0 END) AS num_posts,
		SUM(CASE WHEN m.deleted = 0 AND t.deleted = 0 AND m.approved = 0 THEN 1 ELSE 0 END) AS unapproved_posts,
		SUM(CASE WHEN m.deleted != 0 OR t.deleted != 0 THEN 1 ELSE 0 END) AS deleted_posts
	FROM messages m
	INNER JOIN topics t ON t.id_topic = m.id_topic
	WHERE %s
	GROUP BY t.id_board`

const boardTopicCountsSQL = `SELECT id_board,
		SUM(CASE WHEN deleted = 0 AND approved = 1 THEN 1 ELSE 0 END) AS num_topics,
		SUM(CASE WHEN deleted = 0 AND approved = 0 THEN 1 ELSE 0 END) AS unapproved_topics,
		SUM(CASE WHEN deleted != 0 THEN 1 ELSE 0 END) AS deleted_topics
	FROM topics t
	WHERE %s
	GROUP BY id_board`

const topicStatsSQL = `SELECT t.id_topic, t.id_board, t.num_replies, t.unapproved_posts,
		COALESCE(SUM(CASE WHEN m.approved = 1 THEN 1 ELSE 0 END), 0) AS real_approved,
		COALESCE(SUM(CASE WHEN m.approved = 0 THEN 1 ELSE 0 END), 0) AS real_unapproved
	FROM topics t
	LEFT JOIN messages m ON m.id_topic = t.id_topic AND m.deleted = 0
	WHERE %s
	GROUP BY t.id_topic, t.id_board, t.num_replies, t.unapproved_posts`

type boardCountRow struct {
	Board int `db:"id_board"`
	model.BoardCounters
}

// TopicStatRow 主题存储计数与实际帖子数
type TopicStatRow struct {
	Topic          int `db:"id_topic"`
	Board          int `db:"id_board"`
	NumReplies     int `db:"num_replies"`
	Unapproved     int `db:"unapproved_posts"`
	RealApproved   int `db:"real_approved"`
	RealUnapproved int `db:"real_unapproved"`
}

// Stored 存储的计数
func (r TopicStatRow) Stored() model.TopicCounters {
	return model.TopicCounters{NumReplies: r.NumReplies, UnapprovedPosts: r.Unapproved}
}

// Actual 由帖子推导的计数
func (r TopicStatRow) Actual() model.TopicCounters {
	return model.ReplyCounts(r.RealApproved, r.RealUnapproved)
}

// MisfiledMessage 所在版块与主题不一致的帖子
type MisfiledMessage struct {
	ID    int `db:"id_msg"`
	Board int `db:"topic_board"`
}

// StatsRepository 统计聚合数据访问接口
type StatsRepository interface {
	MaxTopicID(ctx context.Context) (int, error)
	MaxMessageID(ctx context.Context) (int, error)

	TopicStatsInRange(ctx context.Context, start, end int) ([]TopicStatRow, error)
	TopicStatsFor(ctx context.Context, topics []int) ([]TopicStatRow, error)
	SetTopicCounters(ctx context.Context, topic int, c model.TopicCounters) error

	// 以下返回 board -> 计数，只填充对应字段
	PostCountsInRange(ctx context.Context, start, end int) (map[int]model.BoardCounters, error)
	TopicCountsInRange(ctx context.Context, start, end int) (map[int]model.BoardCounters, error)
	PostCountsForTopics(ctx context.Context, topics []int) (map[int]model.BoardCounters, error)
	TopicCountsForTopics(ctx context.Context, topics []int) (map[int]model.BoardCounters, error)
	PostCountsForBoards(ctx context.Context, boards []int) (map[int]model.BoardCounters, error)
	TopicCountsForBoards(ctx context.Context, boards []int) (map[int]model.BoardCounters, error)
	SubtractBoardCounters(ctx context.Context, board int, c model.BoardCounters) error

	// LastMessages 每个版块最新的已审核且未删除帖子
	LastMessages(ctx context.Context) (map[int]int, error)
	MisfiledMessages(ctx context.Context, start, end int) ([]MisfiledMessage, error)
	SetMessagesBoard(ctx context.Context, board int, msgs []int) error
	BoardsOfTopics(ctx context.Context, topics []int) ([]int, error)

	GlobalTotals(ctx context.Context) (map[string]int, error)
	GetSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type statsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository 创建 StatsRepository 实例
func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

// MaxTopicID 最大主题 id
func (r *statsRepository) MaxTopicID(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COALESCE(MAX(id_topic), 0) FROM topics"); err != nil {
		return 0, fmt.Errorf("max topic id: %w", err)
	}
	return n, nil
}

// MaxMessageID 最大帖子 id
func (r *statsRepository) MaxMessageID(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COALESCE(MAX(id_msg), 0) FROM messages"); err != nil {
		return 0, fmt.Errorf("max message id: %w", err)
	}
	return n, nil
}

// TopicStatsInRange id_topic ∈ (start, end] 的主题计数
func (r *statsRepository) TopicStatsInRange(ctx context.Context, start, end int) ([]TopicStatRow, error) {
	var rows []TopicStatRow
	err := r.db.SelectContext(ctx, &rows,
		fmt.Sprintf(topicStatsSQL, "t.id_topic > ? AND t.id_topic <= ?")+" ORDER BY t.id_topic", start, end)
	if err != nil {
		return nil, fmt.Errorf("topic stats in (%d, %d]: %w", start, end, err)
	}
	return rows, nil
}

// TopicStatsFor 指定主题的计数
func (r *statsRepository) TopicStatsFor(ctx context.Context, topics []int) ([]TopicStatRow, error) {
	return selectIn[TopicStatRow](ctx, r.db, fmt.Sprintf(topicStatsSQL, "t.id_topic IN (?)"), topics)
}

// SetTopicCounters 写入主题计数
func (r *statsRepository) SetTopicCounters(ctx context.Context, topic int, c model.TopicCounters) error {
	_, err := r.db.ExecContext(ctx, "UPDATE topics SET num_replies = ?, unapproved_posts = ? WHERE id_topic = ?",
		c.NumReplies, c.UnapprovedPosts, topic)
	if err != nil {
		return fmt.Errorf("set topic %d counters: %w", topic, err)
	}
	return nil
}

func (r *statsRepository) boardCounts(ctx context.Context, query string, args ...interface{}) (map[int]model.BoardCounters, error) {
	var rows []boardCountRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("board counts: %w", err)
	}
	return sumByBoard(rows), nil
}

func (r *statsRepository) boardCountsIn(ctx context.Context, query string, ids []int) (map[int]model.BoardCounters, error) {
	rows, err := selectIn[boardCountRow](ctx, r.db, query, ids)
	if err != nil {
		return nil, err
	}
	return sumByBoard(rows), nil
}

// sumByBoard 分批查询时同一版块可能出现多次
func sumByBoard(rows []boardCountRow) map[int]model.BoardCounters {
	out := make(map[int]model.BoardCounters, len(rows))
	for _, row := range rows {
		out[row.Board] = addCounters(out[row.Board], row.BoardCounters)
	}
	return out
}

func addCounters(a, b model.BoardCounters) model.BoardCounters {
	return model.BoardCounters{
		NumPosts:         a.NumPosts + b.NumPosts,
		NumTopics:        a.NumTopics + b.NumTopics,
		UnapprovedPosts:  a.UnapprovedPosts + b.UnapprovedPosts,
		UnapprovedTopics: a.UnapprovedTopics + b.UnapprovedTopics,
		DeletedPosts:     a.DeletedPosts + b.DeletedPosts,
		DeletedTopics:    a.DeletedTopics + b.DeletedTopics,
	}
}

// PostCountsInRange 主题 id ∈ (start, end] 的帖子计数
func (r *statsRepository) PostCountsInRange(ctx context.Context, start, end int) (map[int]model.BoardCounters, error) {
	return r.boardCounts(ctx, fmt.Sprintf(boardPostCountsSQL, "t.id_topic > ? AND t.id_topic <= ?"), start, end)
}

// TopicCountsInRange 主题 id ∈ (start, end] 的主题计数
func (r *statsRepository) TopicCountsInRange(ctx context.Context, start, end int) (map[int]model.BoardCounters, error) {
	return r.boardCounts(ctx, fmt.Sprintf(boardTopicCountsSQL, "t.id_topic > ? AND t.id_topic <= ?"), start, end)
}

// PostCountsForTopics 指定主题的帖子计数
func (r *statsRepository) PostCountsForTopics(ctx context.Context, topics []int) (map[int]model.BoardCounters, error) {
	return r.boardCountsIn(ctx, fmt.Sprintf(boardPostCountsSQL, "t.id_topic IN (?)"), topics)
}

// TopicCountsForTopics 指定主题的主题计数
func (r *statsRepository) TopicCountsForTopics(ctx context.Context, topics []int) (map[int]model.BoardCounters, error) {
	return r.boardCountsIn(ctx, fmt.Sprintf(boardTopicCountsSQL, "t.id_topic IN (?)"), topics)
}

// PostCountsForBoards 指定版块的帖子计数
func (r *statsRepository) PostCountsForBoards(ctx context.Context, boards []int) (map[int]model.BoardCounters, error) {
	return r.boardCountsIn(ctx, fmt.Sprintf(boardPostCountsSQL, "t.id_board IN (?)"), boards)
}

// TopicCountsForBoards 指定版块的主题计数
func (r *statsRepository) TopicCountsForBoards(ctx context.Context, boards []int) (map[int]model.BoardCounters, error) {
	return r.boardCountsIn(ctx, fmt.Sprintf(boardTopicCountsSQL, "t.id_board IN (?)"), boards)
}

// SubtractBoardCounters 扣减版块计数，结果不小于 0
func (r *statsRepository) SubtractBoardCounters(ctx context.Context, board int, c model.BoardCounters) error {
	_, err := r.db.ExecContext(ctx, `UPDATE boards SET
		num_posts = CASE WHEN num_posts >= ? THEN num_posts - ? ELSE 0 END,
		num_topics = CASE WHEN num_topics >= ? THEN num_topics - ? ELSE 0 END,
		unapproved_posts = CASE WHEN unapproved_posts >= ? THEN unapproved_posts - ? ELSE 0 END,
		unapproved_topics = CASE WHEN unapproved_topics >= ? THEN unapproved_topics - ? ELSE 0 END,
		deleted_posts = CASE WHEN deleted_posts >= ? THEN deleted_posts - ? ELSE 0 END,
		deleted_topics = CASE WHEN deleted_topics >= ? THEN deleted_topics - ? ELSE 0 END
		WHERE id_board = ?`,
		c.NumPosts, c.NumPosts, c.NumTopics, c.NumTopics, c.UnapprovedPosts, c.UnapprovedPosts,
		c.UnapprovedTopics, c.UnapprovedTopics, c.DeletedPosts, c.DeletedPosts, c.DeletedTopics, c.DeletedTopics,
		board)
	if err != nil {
		return fmt.Errorf("subtract counters of board %d: %w", board, err)
	}
	return nil
}

// LastMessages 每个版块最新的有效帖子
func (r *statsRepository) LastMessages(ctx context.Context) (map[int]int, error) {
	var rows []struct {
		Board int `db:"id_board"`
		Msg   int `db:"id_msg"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT t.id_board, MAX(m.id_msg) AS id_msg
		FROM messages m
		INNER JOIN topics t ON t.id_topic = m.id_topic
		WHERE m.approved = 1 AND m.deleted = 0 AND t.deleted = 0
		GROUP BY t.id_board`)
	if err != nil {
		return nil, fmt.Errorf("last messages: %w", err)
	}
	out := make(map[int]int, len(rows))
	for _, row := range rows {
		out[row.Board] = row.Msg
	}
	return out, nil
}

// MisfiledMessages id_msg ∈ (start, end] 中 id_board 与主题不一致的帖子
func (r *statsRepository) MisfiledMessages(ctx context.Context, start, end int) ([]MisfiledMessage, error) {
	var rows []MisfiledMessage
	err := r.db.SelectContext(ctx, &rows, `SELECT m.id_msg, t.id_board AS topic_board
		FROM messages m
		INNER JOIN topics t ON t.id_topic = m.id_topic
		WHERE m.id_msg > ? AND m.id_msg <= ? AND m.id_board != t.id_board
		ORDER BY m.id_msg`, start, end)
	if err != nil {
		return nil, fmt.Errorf("misfiled messages in (%d, %d]: %w", start, end, err)
	}
	return rows, nil
}

// SetMessagesBoard 修正帖子所属版块
func (r *statsRepository) SetMessagesBoard(ctx context.Context, board int, msgs []int) error {
	_, err := execIn(ctx, r.db, "UPDATE messages SET id_board = ? WHERE id_msg IN (?)", msgs, board)
	return err
}

// BoardsOfTopics 主题所在版块（去重）
func (r *statsRepository) BoardsOfTopics(ctx context.Context, topics []int) ([]int, error) {
	return selectIn[int](ctx, r.db, "SELECT DISTINCT id_board FROM topics WHERE id_topic IN (?)", topics)
}

// GlobalTotals 全站统计
func (r *statsRepository) GlobalTotals(ctx context.Context) (map[string]int, error) {
	var totals struct {
		Topics   int `db:"total_topics"`
		Messages int `db:"total_messages"`
		MaxMsg   int `db:"max_msg"`
	}
	err := r.db.GetContext(ctx, &totals, `SELECT
		(SELECT COUNT(*) FROM topics WHERE approved = 1 AND deleted = 0) AS total_topics,
		(SELECT COUNT(*) FROM messages m INNER JOIN topics t ON t.id_topic = m.id_topic
			WHERE m.approved = 1 AND m.deleted = 0 AND t.deleted = 0) AS total_messages,
		(SELECT COALESCE(MAX(id_msg), 0) FROM messages) AS max_msg`)
	if err != nil {
		return nil, fmt.Errorf("global totals: %w", err)
	}
	return map[string]int{
		"totalTopics":   totals.Topics,
		"totalMessages": totals.Messages,
		"maxMsgID":      totals.MaxMsg,
	}, nil
}

// GetSettings 读取全部设置
func (r *statsRepository) GetSettings(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"variable"`
		Value string `db:"value"`
	}
	if err := r.db.SelectContext(ctx, &rows, "SELECT variable, value FROM settings"); err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// SetSetting 写入设置
func (r *statsRepository) SetSetting(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, "REPLACE INTO settings (variable, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// SettingInt 解析整数设置，缺失或非法时返回 -1
func SettingInt(settings map[string]string, key string) int {
	v, ok := settings[key]
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
