package model

import "github.com/StoryBB/StoryBB-sub002/internal/pkg/intset"

// 保留用户组
const (
	GroupGuest           = -1
	GroupUngrouped       = 0
	GroupAdministrator   = 1
	GroupGlobalModerator = 2
	GroupBoardModerator  = 3
)

// 用户组类型
const (
	GroupTypeNormal    = 0
	GroupTypeProtected = 1
	GroupTypeRequest   = 2
	GroupTypeFree      = 3
)

// GroupNoInheritance id_parent 表示不继承权限
const GroupNoInheritance = -2

// ReservedGroups 任何人都不能删除的用户组
var ReservedGroups = intset.New(GroupGuest, GroupUngrouped, GroupAdministrator, GroupBoardModerator)

// ImplicitGroups 成员关系隐式决定、不能显式增删的用户组
var ImplicitGroups = intset.New(GroupGuest, GroupUngrouped, GroupBoardModerator)

// Membergroup 用户组
type Membergroup struct {
	ID          int    `db:"id_group"`
	Name        string `db:"group_name"`
	IsCharacter int    `db:"is_character"` // 1 为角色组，0 为账号组
	Parent      int    `db:"id_parent"`
	GroupType   int    `db:"group_type"`
	Hidden      int    `db:"hidden"`
}

// IsProtected 是否受保护
func (g *Membergroup) IsProtected() bool {
	return g.GroupType == GroupTypeProtected || g.ID == GroupAdministrator
}

// Subscription 付费订阅
type Subscription struct {
	ID        int        `db:"id_subscribe"`
	Name      string     `db:"name"`
	Group     int        `db:"id_group"`
	AddGroups intset.Set `db:"add_groups"`
	Active    int        `db:"active"`
}

// Groups 订阅引用到的全部用户组
func (s *Subscription) Groups() intset.Set {
	out := s.AddGroups.Union(nil)
	if s.Group != 0 {
		out.Add(s.Group)
	}
	return out
}
