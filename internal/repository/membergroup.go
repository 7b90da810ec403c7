package repository

import (
	"context"
	"fmt"

	"github.com/StoryBB/StoryBB-sub002/internal/model"

	"github.com/jmoiron/sqlx"
)

// MembergroupRepository 用户组数据访问接口
type MembergroupRepository interface {
	Get(ctx context.Context, ids []int) ([]*model.Membergroup, error)
	FindIDsByName(ctx context.Context, names []string, character bool) ([]int, error)
	ActiveSubscriptions(ctx context.Context) ([]*model.Subscription, error)
	// Delete 删除用户组及其权限、组管理员、入组申请
	Delete(ctx context.Context, ids []int) error
	ClearInheritance(ctx context.Context, parents []int) error
}

type membergroupRepository struct {
	db *sqlx.DB
}

// NewMembergroupRepository 创建 MembergroupRepository 实例
func NewMembergroupRepository(db *sqlx.DB) MembergroupRepository {
	return &membergroupRepository{db: db}
}

// Get 按 id 获取用户组
func (r *membergroupRepository) Get(ctx context.Context, ids []int) ([]*model.Membergroup, error) {
	return selectIn[*model.Membergroup](ctx, r.db,
		`SELECT id_group, group_name, is_character, id_parent, group_type, hidden
		FROM membergroups WHERE id_group IN (?) ORDER BY id_group`, ids)
}

// FindIDsByName 按组名查找
func (r *membergroupRepository) FindIDsByName(ctx context.Context, names []string, character bool) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}
	isChar := 0
	if character {
		isChar = 1
	}
	q, args, err := in(r.db,
		"SELECT id_group FROM membergroups WHERE is_character = ? AND group_name IN (?) ORDER BY id_group", isChar, names)
	if err != nil {
		return nil, err
	}
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, fmt.Errorf("find membergroups by name: %w", err)
	}
	return ids, nil
}

// ActiveSubscriptions 启用中的付费订阅
func (r *membergroupRepository) ActiveSubscriptions(ctx context.Context) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.SelectContext(ctx, &subs,
		"SELECT id_subscribe, name, id_group, add_groups, active FROM subscriptions WHERE active = 1 ORDER BY id_subscribe")
	if err != nil {
		return nil, fmt.Errorf("active subscriptions: %w", err)
	}
	return subs, nil
}

// Delete 删除用户组
func (r *membergroupRepository) Delete(ctx context.Context, ids []int) error {
	for _, q := range []string{
		"DELETE FROM membergroups WHERE id_group IN (?)",
		"DELETE FROM permissions WHERE id_group IN (?)",
		"DELETE FROM board_permissions WHERE id_group IN (?)",
		"DELETE FROM group_moderators WHERE id_group IN (?)",
		"DELETE FROM moderator_groups WHERE id_group IN (?)",
		"DELETE FROM log_group_requests WHERE id_group IN (?)",
	} {
		if _, err := execIn(ctx, r.db, q, ids); err != nil {
			return err
		}
	}
	return nil
}

// ClearInheritance 继承自被删除用户组的组改为不继承
func (r *membergroupRepository) ClearInheritance(ctx context.Context, parents []int) error {
	_, err := execIn(ctx, r.db, "UPDATE membergroups SET id_parent = ? WHERE id_parent IN (?)",
		parents, model.GroupNoInheritance)
	return err
}
