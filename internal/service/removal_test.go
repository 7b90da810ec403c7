package service

import (
	"testing"

	"github.com/StoryBB/StoryBB-sub002/internal/core/event"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"
	"github.com/StoryBB/StoryBB-sub002/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type topicRow struct {
	Replies    int `db:"num_replies"`
	Unapproved int `db:"unapproved_posts"`
	LastMsg    int `db:"id_last_msg"`
	Deleted    int `db:"deleted"`
}

func (e *testEnv) topic(t *testing.T, id int) topicRow {
	t.Helper()
	var row topicRow
	require.NoError(t, e.fx.DB.Get(&row,
		"SELECT num_replies, unapproved_posts, id_last_msg, deleted FROM topics WHERE id_topic = ?", id))
	return row
}

// assertConsistent 存储的计数与重新统计的结果一致
func (e *testEnv) assertConsistent(t *testing.T, topics, boards []int) {
	t.Helper()
	n, err := e.svc.Stats.UpdateTopicStats(e.ctx, topics)
	require.NoError(t, err)
	assert.Zero(t, n, "topic counters drifted")
	n, err = e.svc.Stats.UpdateBoardStats(e.ctx, boards)
	require.NoError(t, err)
	assert.Zero(t, n, "board counters drifted")
}

type removalFixture struct {
	board  int
	first  testutil.TopicRef
	second testutil.TopicRef
}

func newRemovalFixture(t *testing.T, e *testEnv) removalFixture {
	t.Helper()
	e.fx.Category(1, 1)
	board := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	e.fx.Member(5, "Author", 0, "")
	e.fx.Member(6, "Replier", 0, "")
	e.fx.Exec("UPDATE members SET posts = 10")

	f := removalFixture{board: board}
	f.first = e.fx.Topic(board, 5,
		testutil.Msg{Member: 5},
		testutil.Msg{Member: 5},
		testutil.Msg{Member: 6, Unapproved: true},
	)
	f.second = e.fx.Topic(board, 6, testutil.Msg{Member: 6}, testutil.Msg{Member: 5})

	_, err := e.svc.Stats.UpdateBoardStats(e.ctx, []int{board})
	require.NoError(t, err)
	_, err = e.svc.Stats.UpdateLastMessages(e.ctx, nil)
	require.NoError(t, err)
	return f
}

func TestRemoveTopics_SoftDeleteRestoreRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	f := newRemovalFixture(t, e)
	beforeTopic := e.topic(t, f.first.ID)
	beforeBoard := e.board(t, f.board).Counters()
	assert.Equal(t, model.BoardCounters{NumPosts: 4, NumTopics: 2, UnapprovedPosts: 1}, beforeBoard)

	require.NoError(t, e.svc.Removal.RemoveTopics(e.ctx, admin(), []int{f.first.ID}, true, false, false))

	assert.Equal(t, model.DeletedByModerator, e.topic(t, f.first.ID).Deleted)
	assert.Equal(t, 1, e.fx.Int("SELECT deleted FROM messages WHERE id_msg = ?", f.first.Messages[0]))
	during := e.board(t, f.board).Counters()
	assert.Equal(t, 1, during.NumTopics)
	assert.Equal(t, 1, during.DeletedTopics)
	assert.Equal(t, 2, during.NumPosts)
	assert.Equal(t, 3, during.DeletedPosts)
	assert.Equal(t, 8, e.fx.Int("SELECT posts FROM members WHERE id_member = 5"))
	assert.Equal(t, f.second.Messages[1], e.board(t, f.board).LastMsg)
	e.assertConsistent(t, []int{f.first.ID, f.second.ID}, []int{f.board})

	require.NoError(t, e.svc.Removal.RestoreTopics(e.ctx, admin(), []int{f.first.ID}, true))

	assert.Equal(t, beforeTopic, e.topic(t, f.first.ID))
	assert.Equal(t, beforeBoard, e.board(t, f.board).Counters())
	assert.Equal(t, 10, e.fx.Int("SELECT posts FROM members WHERE id_member = 5"))
	assert.Equal(t, []string{"remove", "restore_topic"}, e.audit.Actions())
	assert.Equal(t, []string{event.TopicsRemoved, event.TopicsRestored}, e.events.Names())

	// 未删除的主题不会被重复恢复
	require.NoError(t, e.svc.Removal.RestoreTopics(e.ctx, admin(), []int{f.first.ID}, true))
	assert.Equal(t, 10, e.fx.Int("SELECT posts FROM members WHERE id_member = 5"))
}

func TestRemoveTopics_OwnerSoftDelete(t *testing.T) {
	e := newTestEnv(t)
	f := newRemovalFixture(t, e)
	owner := &model.Actor{MemberID: 5, Permissions: map[string]bool{model.PermRemoveOwn: true}}

	require.NoError(t, e.svc.Removal.RemoveTopics(e.ctx, owner, []int{f.first.ID}, false, false, false))
	assert.Equal(t, model.DeletedByOwner, e.topic(t, f.first.ID).Deleted)
	assert.Equal(t, 10, e.fx.Int("SELECT posts FROM members WHERE id_member = 5"))
}

func TestRemoveTopics_HardDeleteAfterSoft(t *testing.T) {
	e := newTestEnv(t)
	f := newRemovalFixture(t, e)
	e.fx.Exec("INSERT INTO attachments (id_attach, id_msg) VALUES (1, ?)", f.first.Messages[1])
	e.fx.Exec("INSERT INTO log_search_words (id_word, id_msg) VALUES (9, ?)", f.first.Messages[1])

	require.NoError(t, e.svc.Removal.RemoveTopics(e.ctx, admin(), []int{f.first.ID}, true, false, true))
	require.NoError(t, e.svc.Removal.RemoveTopics(e.ctx, admin(), []int{f.first.ID}, true, false, true))

	assert.Equal(t, 0, e.fx.Int("SELECT COUNT(*) FROM topics WHERE id_topic = ?", f.first.ID))
	assert.Equal(t, 0, e.fx.Int("SELECT COUNT(*) FROM messages WHERE id_topic = ?", f.first.ID))
	assert.Equal(t, 0, e.fx.Int("SELECT COUNT(*) FROM attachments"))
	assert.Equal(t, 0, e.fx.Int("SELECT COUNT(*) FROM log_search_words"))
	// 帖数只在软删除时扣减一次
	assert.Equal(t, 8, e.fx.Int("SELECT posts FROM members WHERE id_member = 5"))

	assert.Equal(t, model.BoardCounters{NumPosts: 2, NumTopics: 1}, e.board(t, f.board).Counters())
	e.assertConsistent(t, []int{f.second.ID}, []int{f.board})

	// 已经不存在的主题是空操作
	assert.NoError(t, e.svc.Removal.RemoveTopics(e.ctx, admin(), []int{f.first.ID}, true, false, true))
}

func TestRemoveTopics_HardDeleteLive(t *testing.T) {
	e := newTestEnv(t)
	f := newRemovalFixture(t, e)

	require.NoError(t, e.svc.Removal.RemoveTopics(e.ctx, admin(), []int{f.second.ID}, true, true, true))

	assert.Equal(t, 0, e.fx.Int("SELECT COUNT(*) FROM topics WHERE id_topic = ?", f.second.ID))
	assert.Equal(t, 9, e.fx.Int("SELECT posts FROM members WHERE id_member = 5"))
	assert.Equal(t, 9, e.fx.Int("SELECT posts FROM members WHERE id_member = 6"))
	assert.Equal(t, f.first.Messages[1], e.board(t, f.board).LastMsg)
	e.assertConsistent(t, []int{f.first.ID}, []int{f.board})
}

func TestRemoveMessage(t *testing.T) {
	e := newTestEnv(t)
	f := newRemovalFixture(t, e)
	last := f.second.Messages[1]

	ok, err := e.svc.Removal.RemoveMessage(e.ctx, admin(), 9999, true)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.svc.Removal.RemoveMessage(e.ctx, admin(), f.second.Messages[0], true)
	assert.ErrorIs(t, err, apperr.ErrMessageIsFirst)

	_, err = e.svc.Removal.RemoveMessage(e.ctx, moderator(model.PermDeleteOwn), last, true)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	author := &model.Actor{MemberID: 5, Permissions: map[string]bool{model.PermDeleteOwn: true}}
	ok, err = e.svc.Removal.RemoveMessage(e.ctx, author, last, true)
	require.NoError(t, err)
	assert.True(t, ok)

	row := e.topic(t, f.second.ID)
	assert.Equal(t, 0, row.Replies)
	assert.Equal(t, f.second.Messages[0], row.LastMsg)
	assert.Equal(t, model.DeletedByOwner, e.fx.Int("SELECT deleted FROM messages WHERE id_msg = ?", last))
	assert.Equal(t, 9, e.fx.Int("SELECT posts FROM members WHERE id_member = 5"))
	e.assertConsistent(t, []int{f.first.ID, f.second.ID}, []int{f.board})

	// 第二次删除同一帖子时物理删除
	ok, err = e.svc.Removal.RemoveMessage(e.ctx, admin(), last, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, e.fx.Int("SELECT COUNT(*) FROM messages WHERE id_msg = ?", last))
	assert.Equal(t, 9, e.fx.Int("SELECT posts FROM members WHERE id_member = 5"))
	e.assertConsistent(t, []int{f.second.ID}, []int{f.board})

	// 只剩首帖时删除整个主题
	ok, err = e.svc.Removal.RemoveMessage(e.ctx, admin(), f.second.Messages[0], true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.DeletedByModerator, e.topic(t, f.second.ID).Deleted)
	assert.Equal(t, []string{"delete", "delete", "remove"}, e.audit.Actions())
}

func TestRemoveMessage_Unapproved(t *testing.T) {
	e := newTestEnv(t)
	f := newRemovalFixture(t, e)
	pending := f.first.Messages[2]

	_, err := e.svc.Removal.RemoveMessage(e.ctx, admin(), pending, true)
	require.NoError(t, err)

	row := e.topic(t, f.first.ID)
	assert.Equal(t, 1, row.Replies)
	assert.Equal(t, 0, row.Unapproved)
	assert.Equal(t, 10, e.fx.Int("SELECT posts FROM members WHERE id_member = 6"))
	assert.Equal(t, 0, e.board(t, f.board).UnapprovedPosts)
	e.assertConsistent(t, []int{f.first.ID}, []int{f.board})
}
