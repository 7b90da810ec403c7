package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/intset"

	"github.com/jmoiron/sqlx"
)

// holderTable 描述一张带主用户组/附加用户组的表
type holderTable struct {
	table      string
	key        string
	name       string
	names      []string // 按名称查找时匹配的列
	primary    string
	additional string
	pmColumn   string // pm_recipients 中对应的列
}

var (
	memberTable = holderTable{
		table:      "members",
		key:        "id_member",
		name:       "real_name",
		names:      []string{"real_name", "member_name"},
		primary:    "id_group",
		additional: "additional_groups",
		pmColumn:   "id_member",
	}
	characterTable = holderTable{
		table:      "characters",
		key:        "id_character",
		name:       "character_name",
		names:      []string{"character_name"},
		primary:    "main_char_group",
		additional: "char_groups",
		pmColumn:   "id_character",
	}
)

// GroupHolderRepository 账号/角色的用户组与计数数据访问接口
type GroupHolderRepository interface {
	Get(ctx context.Context, ids []int) ([]*model.GroupHolder, error)
	// WithAdditionalGroups 附加组非空的记录，ids 为 nil 时扫描全表
	WithAdditionalGroups(ctx context.Context, ids []int) ([]*model.GroupHolder, error)
	InPrimaryGroup(ctx context.Context, group int) ([]int, error)
	ResetPrimary(ctx context.Context, groups []int, ids []int, to int) (int64, error)
	SetAdditional(ctx context.Context, value intset.Set, ids []int) error
	SetGroups(ctx context.Context, primary int, additional intset.Set, ids []int) error
	FindIDsByName(ctx context.Context, names []string) ([]int, error)
	AdjustPosts(ctx context.Context, deltas map[int]int) error
	PMCounters(ctx context.Context) ([]model.PMCounters, error)
	ActualPMCounters(ctx context.Context) ([]model.PMCounters, error)
	SetPMCounters(ctx context.Context, id, total, unread int) error
}

type groupHolderRepository struct {
	db *sqlx.DB
	t  holderTable
}

// NewMemberRepository 账号表
func NewMemberRepository(db *sqlx.DB) GroupHolderRepository {
	return &groupHolderRepository{db: db, t: memberTable}
}

// NewCharacterRepository 角色表
func NewCharacterRepository(db *sqlx.DB) GroupHolderRepository {
	return &groupHolderRepository{db: db, t: characterTable}
}

func (r *groupHolderRepository) selectHolder() string {
	return fmt.Sprintf("SELECT %s AS id, %s AS name, %s AS primary_group, %s AS additional_groups FROM %s",
		r.t.key, r.t.name, r.t.primary, r.t.additional, r.t.table)
}

// Get 按 id 获取
func (r *groupHolderRepository) Get(ctx context.Context, ids []int) ([]*model.GroupHolder, error) {
	return selectIn[*model.GroupHolder](ctx, r.db,
		r.selectHolder()+" WHERE "+r.t.key+" IN (?) ORDER BY "+r.t.key, ids)
}

// WithAdditionalGroups 附加组非空的记录
func (r *groupHolderRepository) WithAdditionalGroups(ctx context.Context, ids []int) ([]*model.GroupHolder, error) {
	base := r.selectHolder() + " WHERE " + r.t.additional + " != ''"
	if ids == nil {
		var out []*model.GroupHolder
		if err := r.db.SelectContext(ctx, &out, base+" ORDER BY "+r.t.key); err != nil {
			return nil, fmt.Errorf("scan %s additional groups: %w", r.t.table, err)
		}
		return out, nil
	}
	return selectIn[*model.GroupHolder](ctx, r.db, base+" AND "+r.t.key+" IN (?) ORDER BY "+r.t.key, ids)
}

// InPrimaryGroup 主用户组为 group 的记录
func (r *groupHolderRepository) InPrimaryGroup(ctx context.Context, group int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		"SELECT "+r.t.key+" FROM "+r.t.table+" WHERE "+r.t.primary+" = ? ORDER BY "+r.t.key, group)
	if err != nil {
		return nil, fmt.Errorf("%s in primary group %d: %w", r.t.table, group, err)
	}
	return ids, nil
}

// ResetPrimary 主用户组属于 groups 的记录改为 to；ids 为 nil 时不限定记录
func (r *groupHolderRepository) ResetPrimary(ctx context.Context, groups []int, ids []int, to int) (int64, error) {
	if len(groups) == 0 {
		return 0, nil
	}
	if ids == nil {
		q, args, err := in(r.db,
			"UPDATE "+r.t.table+" SET "+r.t.primary+" = ? WHERE "+r.t.primary+" IN (?)", to, groups)
		if err != nil {
			return 0, err
		}
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("reset %s primary groups: %w", r.t.table, err)
		}
		return res.RowsAffected()
	}

	var affected int64
	for _, part := range chunk(ids) {
		q, args, err := in(r.db,
			"UPDATE "+r.t.table+" SET "+r.t.primary+" = ? WHERE "+r.t.primary+" IN (?) AND "+r.t.key+" IN (?)",
			to, groups, part)
		if err != nil {
			return affected, err
		}
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return affected, fmt.Errorf("reset %s primary groups: %w", r.t.table, err)
		}
		n, _ := res.RowsAffected()
		affected += n
	}
	return affected, nil
}

// SetAdditional 写入附加用户组
func (r *groupHolderRepository) SetAdditional(ctx context.Context, value intset.Set, ids []int) error {
	_, err := execIn(ctx, r.db,
		"UPDATE "+r.t.table+" SET "+r.t.additional+" = ? WHERE "+r.t.key+" IN (?)", ids, value.String())
	return err
}

// SetGroups 同时写入主用户组和附加用户组
func (r *groupHolderRepository) SetGroups(ctx context.Context, primary int, additional intset.Set, ids []int) error {
	_, err := execIn(ctx, r.db,
		"UPDATE "+r.t.table+" SET "+r.t.primary+" = ?, "+r.t.additional+" = ? WHERE "+r.t.key+" IN (?)",
		ids, primary, additional.String())
	return err
}

// FindIDsByName 按名称查找
func (r *groupHolderRepository) FindIDsByName(ctx context.Context, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}
	conds := make([]string, len(r.t.names))
	args := make([]interface{}, len(r.t.names))
	for i, col := range r.t.names {
		conds[i] = col + " IN (?)"
		args[i] = names
	}
	q, a, err := in(r.db, "SELECT "+r.t.key+" FROM "+r.t.table+" WHERE "+strings.Join(conds, " OR ")+" ORDER BY "+r.t.key, args...)
	if err != nil {
		return nil, err
	}
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, q, a...); err != nil {
		return nil, fmt.Errorf("find %s by name: %w", r.t.table, err)
	}
	return ids, nil
}

// AdjustPosts 调整帖数，结果不小于 0
func (r *groupHolderRepository) AdjustPosts(ctx context.Context, deltas map[int]int) error {
	for id, delta := range deltas {
		if id == 0 || delta == 0 {
			continue
		}
		_, err := r.db.ExecContext(ctx, "UPDATE "+r.t.table+
			" SET posts = CASE WHEN posts + ? < 0 THEN 0 ELSE posts + ? END WHERE "+r.t.key+" = ?",
			delta, delta, id)
		if err != nil {
			return fmt.Errorf("adjust posts of %s %d: %w", r.t.table, id, err)
		}
	}
	return nil
}

// PMCounters 当前存储的私信计数
func (r *groupHolderRepository) PMCounters(ctx context.Context) ([]model.PMCounters, error) {
	var out []model.PMCounters
	err := r.db.SelectContext(ctx, &out,
		"SELECT "+r.t.key+" AS id, instant_messages AS total, unread_messages AS unread FROM "+r.t.table+" ORDER BY "+r.t.key)
	if err != nil {
		return nil, fmt.Errorf("pm counters of %s: %w", r.t.table, err)
	}
	return out, nil
}

// ActualPMCounters 根据收件记录统计的私信计数
func (r *groupHolderRepository) ActualPMCounters(ctx context.Context) ([]model.PMCounters, error) {
	var out []model.PMCounters
	err := r.db.SelectContext(ctx, &out, fmt.Sprintf(`SELECT %[1]s AS id, COUNT(*) AS total,
		SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END) AS unread
		FROM pm_recipients
		WHERE deleted = 0 AND %[1]s != 0
		GROUP BY %[1]s`, r.t.pmColumn))
	if err != nil {
		return nil, fmt.Errorf("actual pm counters of %s: %w", r.t.table, err)
	}
	return out, nil
}

// SetPMCounters 写入私信计数
func (r *groupHolderRepository) SetPMCounters(ctx context.Context, id, total, unread int) error {
	_, err := r.db.ExecContext(ctx, "UPDATE "+r.t.table+
		" SET instant_messages = ?, unread_messages = ? WHERE "+r.t.key+" = ?", total, unread, id)
	if err != nil {
		return fmt.Errorf("set pm counters of %s %d: %w", r.t.table, id, err)
	}
	return nil
}
