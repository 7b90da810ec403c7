package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// Fixture 在测试数据库中构造论坛数据
type Fixture struct {
	t         testing.TB
	DB        *sqlx.DB
	nextTopic int
	nextMsg   int
}

// NewFixture 打开新的测试数据库
func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	return &Fixture{t: t, DB: OpenDB(t)}
}

// BoardSpec 版块行，零值字段使用表默认值
type BoardSpec struct {
	ID           int
	Category     int
	Parent       int
	Level        int
	Order        int
	Name         string
	MemberGroups string
	DenyGroups   string
	NoCountPosts bool
	Profile      int
	Redirect     string
}

// Msg 主题中的一个帖子
type Msg struct {
	Member     int
	Character  int
	Unapproved bool
	Deleted    int
}

// TopicRef 新建主题的 id
type TopicRef struct {
	ID       int
	Messages []int
}

// Exec 执行任意语句
func (f *Fixture) Exec(query string, args ...interface{}) {
	f.t.Helper()
	_, err := f.DB.Exec(query, args...)
	require.NoError(f.t, err, query)
}

// Int 查询单个整数
func (f *Fixture) Int(query string, args ...interface{}) int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.DB.Get(&n, query, args...), query)
	return n
}

// String 查询单个字符串
func (f *Fixture) String(query string, args ...interface{}) string {
	f.t.Helper()
	var s string
	require.NoError(f.t, f.DB.Get(&s, query, args...), query)
	return s
}

// Category 插入分区
func (f *Fixture) Category(id, order int) {
	f.t.Helper()
	f.Exec("INSERT INTO categories (id_cat, name, cat_order) VALUES (?, ?, ?)", id, "Category", order)
}

// Board 插入版块
func (f *Fixture) Board(b BoardSpec) int {
	f.t.Helper()
	if b.MemberGroups == "" {
		b.MemberGroups = "-1,0"
	}
	if b.Profile == 0 {
		b.Profile = 1
	}
	if b.Name == "" {
		b.Name = "Board"
	}
	countPosts := 0
	if b.NoCountPosts {
		countPosts = 1
	}
	res, err := f.DB.Exec(`INSERT INTO boards
		(id_board, id_cat, id_parent, child_level, board_order, name, member_groups, deny_groups, count_posts, id_profile, redirect)
		VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Category, b.Parent, b.Level, b.Order, b.Name, b.MemberGroups, b.DenyGroups, countPosts, b.Profile, b.Redirect)
	require.NoError(f.t, err)
	id, err := res.LastInsertId()
	require.NoError(f.t, err)
	return int(id)
}

// Group 插入用户组
func (f *Fixture) Group(id int, name string, character bool, groupType int) {
	f.t.Helper()
	isChar := 0
	if character {
		isChar = 1
	}
	f.Exec("INSERT INTO membergroups (id_group, group_name, is_character, group_type) VALUES (?, ?, ?, ?)",
		id, name, isChar, groupType)
}

// Member 插入账号
func (f *Fixture) Member(id int, name string, primary int, additional string) {
	f.t.Helper()
	f.Exec("INSERT INTO members (id_member, member_name, real_name, id_group, additional_groups) VALUES (?, ?, ?, ?, ?)",
		id, name, name, primary, additional)
}

// Character 插入角色
func (f *Fixture) Character(id, member int, name string, primary int, groups string) {
	f.t.Helper()
	f.Exec(`INSERT INTO characters (id_character, id_member, character_name, main_char_group, char_groups)
		VALUES (?, ?, ?, ?, ?)`, id, member, name, primary, groups)
}

// Subscription 插入付费订阅
func (f *Fixture) Subscription(id, group int, addGroups string, active bool) {
	f.t.Helper()
	a := 0
	if active {
		a = 1
	}
	f.Exec("INSERT INTO subscriptions (id_subscribe, name, id_group, add_groups, active) VALUES (?, ?, ?, ?, ?)",
		id, "Subscription", group, addGroups, a)
}

// Topic 在版块中插入主题及其帖子，第一个帖子为首帖
// 主题计数按帖子状态写入，版块计数不更新
func (f *Fixture) Topic(board, starter int, msgs ...Msg) TopicRef {
	f.t.Helper()
	require.NotEmpty(f.t, msgs, "topic needs at least one message")

	f.nextTopic++
	ref := TopicRef{ID: f.nextTopic}
	approved, unapproved := 0, 0
	lastMsg, lastMember := 0, 0
	for i, m := range msgs {
		f.nextMsg++
		id := f.nextMsg
		ref.Messages = append(ref.Messages, id)
		member := m.Member
		if i == 0 && member == 0 {
			member = starter
		}
		ok := 1
		if m.Unapproved {
			ok = 0
		}
		f.Exec(`INSERT INTO messages (id_msg, id_topic, id_board, id_member, id_character, subject, approved, deleted, poster_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, id, ref.ID, board, member, m.Character, "Subject", ok, m.Deleted, 1000+id)
		if m.Deleted != 0 {
			continue
		}
		if m.Unapproved {
			unapproved++
		} else {
			approved++
		}
		lastMsg, lastMember = id, member
	}

	topicApproved := 1
	if msgs[0].Unapproved {
		topicApproved = 0
	}
	replies := approved - 1
	if replies < 0 {
		replies = 0
	}
	f.Exec(`INSERT INTO topics (id_topic, id_board, id_first_msg, id_last_msg, id_member_started, id_member_updated,
			num_replies, unapproved_posts, approved, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.ID, board, ref.Messages[0], lastMsg, starter, lastMember, replies, unapproved, topicApproved, msgs[0].Deleted)
	return ref
}

// Approved n 个已审核帖子
func Approved(n int) []Msg {
	return make([]Msg, n)
}

// Unapproved n 个待审核帖子
func Unapproved(n int) []Msg {
	out := make([]Msg, n)
	for i := range out {
		out[i].Unapproved = true
	}
	return out
}
