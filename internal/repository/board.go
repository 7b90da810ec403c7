package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/intset"

	"github.com/jmoiron/sqlx"
)

const boardColumns = `b.id_board, b.id_cat, b.id_parent, b.child_level, b.board_order, b.name, b.description, b.slug,
	b.member_groups, b.deny_groups, b.redirect, b.num_posts, b.num_topics, b.unapproved_posts, b.unapproved_topics,
	b.deleted_posts, b.deleted_topics, b.count_posts, b.id_theme, b.override_theme, b.id_profile, b.id_last_msg, b.id_msg_updated`

// BoardPosition 版块在树中的位置
type BoardPosition struct {
	Category int
	Parent   int
	Level    int
	Order    int
}

// BoardRepository 版块与分区数据访问接口
type BoardRepository interface {
	ListCategories(ctx context.Context) ([]*model.Category, error)
	// ListBoards 按 (cat_order, child_level, board_order) 返回全部版块
	ListBoards(ctx context.Context) ([]*model.Board, error)
	GetByID(ctx context.Context, id int) (*model.Board, error)
	CategoryExists(ctx context.Context, id int) (bool, error)
	Create(ctx context.Context, category int, name, slug string) (int, error)
	Update(ctx context.Context, id int, fields map[string]interface{}) error
	SetPosition(ctx context.Context, id int, pos BoardPosition) error
	SetChildLevel(ctx context.Context, id, level int) error
	SetCategory(ctx context.Context, ids []int, category int) error
	ShiftLevels(ctx context.Context, ids []int, delta int) error
	SetOrder(ctx context.Context, id, order int) error
	// MakeRoom 将 board_order > after 的版块（exclude 除外）后移 by 位
	MakeRoom(ctx context.Context, after, by int, exclude []int) error
	ChildrenOf(ctx context.Context, parent int) ([]int, error)
	Reparent(ctx context.Context, oldParent, newParent, level, category int) error
	ReplaceModerators(ctx context.Context, id int, members []int) error
	ReplaceModeratorGroups(ctx context.Context, id int, groups []int) error
	DeleteBoards(ctx context.Context, ids []int) error
	SetAccessLists(ctx context.Context, id int, allow, deny intset.Set) error
	SetCounters(ctx context.Context, id int, c model.BoardCounters) error
	SetLastMessage(ctx context.Context, id, lastMsg, msgUpdated int) error
}

type boardRepository struct {
	db *sqlx.DB
}

// NewBoardRepository 创建 BoardRepository 实例
func NewBoardRepository(db *sqlx.DB) BoardRepository {
	return &boardRepository{db: db}
}

// ListCategories 获取全部分区
func (r *boardRepository) ListCategories(ctx context.Context) ([]*model.Category, error) {
	var cats []*model.Category
	err := r.db.SelectContext(ctx, &cats,
		"SELECT id_cat, name, cat_order, can_collapse FROM categories ORDER BY cat_order ASC, id_cat ASC")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// ListBoards 获取全部版块，分区缺失的版块也会返回
func (r *boardRepository) ListBoards(ctx context.Context) ([]*model.Board, error) {
	var boards []*model.Board
	err := r.db.SelectContext(ctx, &boards, "SELECT "+boardColumns+`
		FROM boards b
		LEFT JOIN categories c ON c.id_cat = b.id_cat
		ORDER BY COALESCE(c.cat_order, -1) ASC, b.child_level ASC, b.board_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	return boards, nil
}

// GetByID 根据 ID 获取版块，不存在返回 nil
func (r *boardRepository) GetByID(ctx context.Context, id int) (*model.Board, error) {
	var b model.Board
	err := r.db.GetContext(ctx, &b, "SELECT "+boardColumns+" FROM boards b WHERE b.id_board = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get board %d: %w", id, err)
	}
	return &b, nil
}

// CategoryExists 分区是否存在
func (r *boardRepository) CategoryExists(ctx context.Context, id int) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM categories WHERE id_cat = ?", id); err != nil {
		return false, fmt.Errorf("category exists: %w", err)
	}
	return n > 0, nil
}

// Create 插入一个空版块，位置由调用方随后设置
func (r *boardRepository) Create(ctx context.Context, category int, name, slug string) (int, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO boards
		(id_cat, id_parent, child_level, board_order, name, description, slug, member_groups, deny_groups, redirect)
		VALUES (?, 0, 0, 0, ?, '', ?, '-1,0', '', '')`, category, name, slug)
	if err != nil {
		return 0, fmt.Errorf("create board: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create board: %w", err)
	}
	return int(id), nil
}

// 允许通过 Update 修改的列
var updatableBoardColumns = map[string]bool{
	"name": true, "description": true, "slug": true, "redirect": true,
	"count_posts": true, "id_theme": true, "override_theme": true, "id_profile": true,
	"member_groups": true, "deny_groups": true,
}

// Update 稀疏更新版块字段
func (r *boardRepository) Update(ctx context.Context, id int, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !updatableBoardColumns[col] {
			return fmt.Errorf("update board: column %q not updatable", col)
		}
		cols = append(cols, col)
	}
	// 固定顺序便于日志与语句缓存
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = col + " = ?"
		args = append(args, fields[col])
	}
	args = append(args, id)

	_, err := r.db.ExecContext(ctx, "UPDATE boards SET "+strings.Join(sets, ", ")+" WHERE id_board = ?", args...)
	if err != nil {
		return fmt.Errorf("update board %d: %w", id, err)
	}
	return nil
}

// SetPosition 写入版块的分区、父版块、层级和排序
func (r *boardRepository) SetPosition(ctx context.Context, id int, pos BoardPosition) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE boards SET id_cat = ?, id_parent = ?, child_level = ?, board_order = ? WHERE id_board = ?",
		pos.Category, pos.Parent, pos.Level, pos.Order, id)
	if err != nil {
		return fmt.Errorf("set board %d position: %w", id, err)
	}
	return nil
}

// SetChildLevel 修正层级
func (r *boardRepository) SetChildLevel(ctx context.Context, id, level int) error {
	_, err := r.db.ExecContext(ctx, "UPDATE boards SET child_level = ? WHERE id_board = ?", level, id)
	if err != nil {
		return fmt.Errorf("set board %d child_level: %w", id, err)
	}
	return nil
}

// SetCategory 批量修改所属分区
func (r *boardRepository) SetCategory(ctx context.Context, ids []int, category int) error {
	_, err := execIn(ctx, r.db, "UPDATE boards SET id_cat = ? WHERE id_board IN (?)", ids, category)
	return err
}

// ShiftLevels 批量调整层级
func (r *boardRepository) ShiftLevels(ctx context.Context, ids []int, delta int) error {
	if delta == 0 {
		return nil
	}
	_, err := execIn(ctx, r.db, "UPDATE boards SET child_level = child_level + ? WHERE id_board IN (?)", ids, delta)
	return err
}

// SetOrder 修改排序值
func (r *boardRepository) SetOrder(ctx context.Context, id, order int) error {
	_, err := r.db.ExecContext(ctx, "UPDATE boards SET board_order = ? WHERE id_board = ?", order, id)
	if err != nil {
		return fmt.Errorf("set board %d order: %w", id, err)
	}
	return nil
}

// MakeRoom 为插入腾出排序空间
func (r *boardRepository) MakeRoom(ctx context.Context, after, by int, exclude []int) error {
	if len(exclude) == 0 {
		_, err := r.db.ExecContext(ctx,
			"UPDATE boards SET board_order = board_order + ? WHERE board_order > ?", by, after)
		if err != nil {
			return fmt.Errorf("make room after %d: %w", after, err)
		}
		return nil
	}
	q, args, err := in(r.db,
		"UPDATE boards SET board_order = board_order + ? WHERE board_order > ? AND id_board NOT IN (?)",
		by, after, exclude)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("make room after %d: %w", after, err)
	}
	return nil
}

// ChildrenOf 直接子版块
func (r *boardRepository) ChildrenOf(ctx context.Context, parent int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		"SELECT id_board FROM boards WHERE id_parent = ? ORDER BY board_order ASC", parent)
	if err != nil {
		return nil, fmt.Errorf("children of %d: %w", parent, err)
	}
	return ids, nil
}

// Reparent 将 oldParent 的直接子版块挂到 newParent 下
func (r *boardRepository) Reparent(ctx context.Context, oldParent, newParent, level, category int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE boards SET id_parent = ?, child_level = ?, id_cat = ? WHERE id_parent = ?",
		newParent, level, category, oldParent)
	if err != nil {
		return fmt.Errorf("reparent children of %d: %w", oldParent, err)
	}
	return nil
}

// ReplaceModerators 全量替换版主（先删后插）
func (r *boardRepository) ReplaceModerators(ctx context.Context, id int, members []int) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM moderators WHERE id_board = ?", id); err != nil {
		return fmt.Errorf("clear moderators of %d: %w", id, err)
	}
	for _, m := range intset.New(members...).Slice() {
		if _, err := r.db.ExecContext(ctx, "INSERT INTO moderators (id_board, id_member) VALUES (?, ?)", id, m); err != nil {
			return fmt.Errorf("add moderator %d to %d: %w", m, id, err)
		}
	}
	return nil
}

// ReplaceModeratorGroups 全量替换版主用户组（先删后插）
func (r *boardRepository) ReplaceModeratorGroups(ctx context.Context, id int, groups []int) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM moderator_groups WHERE id_board = ?", id); err != nil {
		return fmt.Errorf("clear moderator groups of %d: %w", id, err)
	}
	for _, g := range intset.New(groups...).Slice() {
		if _, err := r.db.ExecContext(ctx, "INSERT INTO moderator_groups (id_board, id_group) VALUES (?, ?)", id, g); err != nil {
			return fmt.Errorf("add moderator group %d to %d: %w", g, id, err)
		}
	}
	return nil
}

// DeleteBoards 删除版块及其已读记录、版主设置
func (r *boardRepository) DeleteBoards(ctx context.Context, ids []int) error {
	for _, q := range []string{
		"DELETE FROM log_mark_read WHERE id_board IN (?)",
		"DELETE FROM log_boards WHERE id_board IN (?)",
		"DELETE FROM log_notify WHERE id_board IN (?)",
		"DELETE FROM moderators WHERE id_board IN (?)",
		"DELETE FROM moderator_groups WHERE id_board IN (?)",
		"DELETE FROM boards WHERE id_board IN (?)",
	} {
		if _, err := execIn(ctx, r.db, q, ids); err != nil {
			return err
		}
	}
	return nil
}

// SetAccessLists 写入允许/禁止访问的用户组
func (r *boardRepository) SetAccessLists(ctx context.Context, id int, allow, deny intset.Set) error {
	_, err := r.db.ExecContext(ctx, "UPDATE boards SET member_groups = ?, deny_groups = ? WHERE id_board = ?",
		allow.String(), deny.String(), id)
	if err != nil {
		return fmt.Errorf("set access lists of %d: %w", id, err)
	}
	return nil
}

// SetCounters 写入统计计数
func (r *boardRepository) SetCounters(ctx context.Context, id int, c model.BoardCounters) error {
	_, err := r.db.ExecContext(ctx, `UPDATE boards SET num_posts = ?, num_topics = ?, unapproved_posts = ?,
		unapproved_topics = ?, deleted_posts = ?, deleted_topics = ? WHERE id_board = ?`,
		c.NumPosts, c.NumTopics, c.UnapprovedPosts, c.UnapprovedTopics, c.DeletedPosts, c.DeletedTopics, id)
	if err != nil {
		return fmt.Errorf("set counters of %d: %w", id, err)
	}
	return nil
}

// SetLastMessage 写入最后帖子指针
func (r *boardRepository) SetLastMessage(ctx context.Context, id, lastMsg, msgUpdated int) error {
	_, err := r.db.ExecContext(ctx, "UPDATE boards SET id_last_msg = ?, id_msg_updated = ? WHERE id_board = ?",
		lastMsg, msgUpdated, id)
	if err != nil {
		return fmt.Errorf("set last message of %d: %w", id, err)
	}
	return nil
}
