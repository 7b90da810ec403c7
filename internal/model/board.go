package model

import "github.com/StoryBB/StoryBB-sub002/internal/pkg/intset"

// Board 版块
type Board struct {
	ID               int        `db:"id_board"`
	Category         int        `db:"id_cat"`
	Parent           int        `db:"id_parent"`   // 父版块 ID（0 表示顶级版块）
	Level            int        `db:"child_level"` // 深度，顶级为 0
	Order            int        `db:"board_order"` // 全站唯一的排序值
	Name             string     `db:"name"`
	Description      string     `db:"description"`
	Slug             string     `db:"slug"`
	MemberGroups     intset.Set `db:"member_groups"`
	DenyGroups       intset.Set `db:"deny_groups"`
	Redirect         string     `db:"redirect"`
	NumPosts         int        `db:"num_posts"`
	NumTopics        int        `db:"num_topics"`
	UnapprovedPosts  int        `db:"unapproved_posts"`
	UnapprovedTopics int        `db:"unapproved_topics"`
	DeletedPosts     int        `db:"deleted_posts"`
	DeletedTopics    int        `db:"deleted_topics"`
	CountPosts       int        `db:"count_posts"` // 0 表示发帖计入会员帖数
	Theme            int        `db:"id_theme"`
	OverrideTheme    int        `db:"override_theme"`
	Profile          int        `db:"id_profile"`
	LastMsg          int        `db:"id_last_msg"`
	MsgUpdated       int        `db:"id_msg_updated"`
}

// CountsPosts 在该版块发帖是否增加会员帖数
func (b *Board) CountsPosts() bool {
	return b.CountPosts == 0
}

// IsRedirect 是否为跳转版块
func (b *Board) IsRedirect() bool {
	return b.Redirect != ""
}

// Category 分区
type Category struct {
	ID          int    `db:"id_cat"`
	Name        string `db:"name"`
	Order       int    `db:"cat_order"`
	CanCollapse int    `db:"can_collapse"`
}

// BoardCounters 版块统计计数
type BoardCounters struct {
	NumPosts         int `db:"num_posts" json:"num_posts"`
	NumTopics        int `db:"num_topics" json:"num_topics"`
	UnapprovedPosts  int `db:"unapproved_posts" json:"unapproved_posts"`
	UnapprovedTopics int `db:"unapproved_topics" json:"unapproved_topics"`
	DeletedPosts     int `db:"deleted_posts" json:"deleted_posts"`
	DeletedTopics    int `db:"deleted_topics" json:"deleted_topics"`
}

// Counters 当前存储的计数
func (b *Board) Counters() BoardCounters {
	return BoardCounters{
		NumPosts:         b.NumPosts,
		NumTopics:        b.NumTopics,
		UnapprovedPosts:  b.UnapprovedPosts,
		UnapprovedTopics: b.UnapprovedTopics,
		DeletedPosts:     b.DeletedPosts,
		DeletedTopics:    b.DeletedTopics,
	}
}

// BoardOrderEntry 缓存的版块排序快照项
type BoardOrderEntry struct {
	ID       int    `json:"id"`
	Category int    `json:"cat"`
	Parent   int    `json:"parent"`
	Level    int    `json:"level"`
	Order    int    `json:"order"`
	Name     string `json:"name"`
}
