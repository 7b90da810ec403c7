package model

import "github.com/StoryBB/StoryBB-sub002/internal/pkg/intset"

// GroupHolder 拥有主用户组和附加用户组的实体（账号或角色）
type GroupHolder struct {
	ID               int        `db:"id"`
	Name             string     `db:"name"`
	PrimaryGroup     int        `db:"primary_group"`
	AdditionalGroups intset.Set `db:"additional_groups"`
}

// AllGroups 主组与附加组的并集
func (h *GroupHolder) AllGroups() intset.Set {
	all := h.AdditionalGroups.Union(nil)
	all.Add(h.PrimaryGroup)
	return all
}

// Member 账号
type Member struct {
	ID               int        `db:"id_member"`
	Name             string     `db:"member_name"`
	RealName         string     `db:"real_name"`
	Group            int        `db:"id_group"`
	AdditionalGroups intset.Set `db:"additional_groups"`
	Posts            int        `db:"posts"`
	InstantMessages  int        `db:"instant_messages"`
	UnreadMessages   int        `db:"unread_messages"`
}

// Character 账号下的角色
type Character struct {
	ID              int        `db:"id_character"`
	Member          int        `db:"id_member"`
	Name            string     `db:"character_name"`
	MainGroup       int        `db:"main_char_group"`
	CharGroups      intset.Set `db:"char_groups"`
	Posts           int        `db:"posts"`
	InstantMessages int        `db:"instant_messages"`
	UnreadMessages  int        `db:"unread_messages"`
}

// PMCounters 私信计数
type PMCounters struct {
	ID     int `db:"id"`
	Total  int `db:"total"`
	Unread int `db:"unread"`
}
