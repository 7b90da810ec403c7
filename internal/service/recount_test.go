package service

import (
	"strings"
	"testing"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/event"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"
	"github.com/StoryBB/StoryBB-sub002/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRecount 用续跑令牌驱动到完成，返回调用次数
func runRecount(t *testing.T, e *testEnv) int {
	t.Helper()
	calls, token := 0, ""
	for {
		calls++
		require.Less(t, calls, 100, "recount did not finish")
		next, err := e.svc.Recount.Continue(e.ctx, token)
		require.NoError(t, err)
		if next.Done {
			assert.Equal(t, 100, next.Percent)
			assert.Empty(t, next.Token)
			return calls
		}
		require.NotEmpty(t, next.Token)
		token = next.Token
	}
}

// fullRun 在一次调用内执行完整的重新统计
func fullRun(t *testing.T, e *testEnv) JobState {
	t.Helper()
	st, err := e.svc.Recount.NewJob(e.ctx)
	require.NoError(t, err)
	st, done, err := e.svc.Recount.RunBudgeted(e.ctx, st, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, done)
	return st
}

func TestRecount_BoardCounters(t *testing.T) {
	e := newTestEnv(t)
	e.fx.Category(1, 1)
	k := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	e.fx.Member(5, "Poster", 0, "")
	first := e.fx.Topic(k, 5, testutil.Approved(3)...)
	second := e.fx.Topic(k, 5, testutil.Approved(5)...)
	pending := e.fx.Topic(k, 5, testutil.Unapproved(2)...)
	e.fx.Exec("UPDATE boards SET num_posts = 99, num_topics = 42, unapproved_posts = 7, unapproved_topics = 0, deleted_posts = 3")
	e.fx.Exec("UPDATE topics SET num_replies = 0")

	calls := runRecount(t, e)
	assert.Greater(t, calls, 1)

	b := e.board(t, k)
	assert.Equal(t, 2, b.NumTopics)
	assert.Equal(t, 8, b.NumPosts)
	assert.Equal(t, 1, b.UnapprovedTopics)
	assert.Equal(t, 2, b.UnapprovedPosts)
	assert.Equal(t, 0, b.DeletedPosts)
	assert.Equal(t, 0, b.DeletedTopics)

	assert.Equal(t, 2, e.topic(t, first.ID).Replies)
	assert.Equal(t, 4, e.topic(t, second.ID).Replies)
	assert.Equal(t, 0, e.topic(t, pending.ID).Replies)
	assert.Equal(t, 2, e.topic(t, pending.ID).Unapproved)
	assert.Equal(t, second.Messages[4], b.LastMsg)
	assert.Contains(t, e.events.Names(), event.RecalculateTasks)
}

func TestRecount_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	e.fx.Category(1, 1)
	e.fx.Category(2, 2)
	a := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	b := e.fx.Board(testutil.BoardSpec{Category: 2, Order: 2, NoCountPosts: true})
	e.fx.Member(5, "Poster", 0, "")
	e.fx.Member(6, "Reader", 0, "")
	e.fx.Character(50, 5, "Alter", 0, "")

	e.fx.Topic(a, 5, testutil.Msg{}, testutil.Msg{Member: 6, Unapproved: true}, testutil.Msg{Member: 6, Deleted: 1})
	e.fx.Topic(a, 5, testutil.Msg{Deleted: 1}, testutil.Msg{Member: 6})
	e.fx.Topic(b, 6, testutil.Msg{Unapproved: true}, testutil.Msg{Member: 5, Character: 50})
	e.fx.Topic(b, 6, testutil.Approved(4)...)
	misfiled := e.fx.Topic(b, 6, testutil.Approved(2)...)
	e.fx.Exec("UPDATE messages SET id_board = ? WHERE id_msg = ?", a, misfiled.Messages[1])

	e.fx.Exec("INSERT INTO pm_recipients (id_pm, id_member, id_character, is_read) VALUES (1, 5, 50, 0), (2, 5, 50, 1), (3, 6, 0, 1)")
	e.fx.Exec("INSERT INTO pm_recipients (id_pm, id_member, is_read, deleted) VALUES (4, 6, 0, 1)")
	e.fx.Exec("UPDATE members SET instant_messages = 9, unread_messages = 9")
	e.fx.Exec("UPDATE boards SET num_posts = 1, deleted_topics = 5")

	first := fullRun(t, e)
	assert.Positive(t, first.Corrections)
	assert.Equal(t, b, e.fx.Int("SELECT id_board FROM messages WHERE id_msg = ?", misfiled.Messages[1]))
	assert.Equal(t, 2, e.fx.Int("SELECT instant_messages FROM members WHERE id_member = 5"))
	assert.Equal(t, 1, e.fx.Int("SELECT unread_messages FROM members WHERE id_member = 5"))
	assert.Equal(t, 1, e.fx.Int("SELECT instant_messages FROM members WHERE id_member = 6"))
	assert.Equal(t, 0, e.fx.Int("SELECT unread_messages FROM members WHERE id_member = 6"))
	assert.Equal(t, 2, e.fx.Int("SELECT instant_messages FROM characters WHERE id_character = 50"))

	second := fullRun(t, e)
	assert.Zero(t, second.Corrections)

	// 分多次调用执行也不再修改任何行
	st, err := e.svc.Recount.NewJob(e.ctx)
	require.NoError(t, err)
	for done := false; !done; {
		st, done, err = e.svc.Recount.RunBudgeted(e.ctx, st, time.Now().Add(-time.Second))
		require.NoError(t, err)
	}
	assert.Zero(t, st.Corrections)
}

func TestRecount_YieldsAfterOneWindow(t *testing.T) {
	e := newTestEnv(t)
	e.fx.Category(1, 1)
	k := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	for i := 0; i < 5; i++ {
		e.fx.Topic(k, 0, testutil.Approved(1)...)
	}

	st, err := e.svc.Recount.NewJob(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, st.MaxTopic)
	assert.Equal(t, 2, st.Increment)
	assert.NotEmpty(t, st.JobID)

	st, done, err := e.svc.Recount.RunBudgeted(e.ctx, st, time.Now().Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, StepTopicReplies, st.Step)
	assert.Equal(t, 2, st.Start)

	prev := st.Progress()
	for !st.Done() {
		st, _, err = e.svc.Recount.RunBudgeted(e.ctx, st, time.Now().Add(-time.Second))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, st.Progress(), prev)
		prev = st.Progress()
	}
	assert.Equal(t, 100, prev)
}

func TestRecount_PicksUpTopicsCreatedMidJob(t *testing.T) {
	e := newTestEnv(t)
	e.fx.Category(1, 1)
	k := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	e.fx.Topic(k, 0, testutil.Approved(1)...)
	e.fx.Topic(k, 0, testutil.Approved(1)...)

	next, err := e.svc.Recount.Continue(e.ctx, "")
	require.NoError(t, err)
	require.False(t, next.Done)
	assert.Equal(t, StepBoardPosts, next.NextStep)

	// 任务开始后新建的主题 id 超过了最初的上限
	late := e.fx.Topic(k, 0, testutil.Approved(3)...)

	token := next.Token
	for i := 0; !next.Done; i++ {
		require.Less(t, i, 100, "recount did not finish")
		next, err = e.svc.Recount.Continue(e.ctx, token)
		require.NoError(t, err)
		token = next.Token
	}

	b := e.board(t, k)
	assert.Equal(t, 5, b.NumPosts)
	assert.Equal(t, 3, b.NumTopics)
	assert.Equal(t, late.Messages[2], b.LastMsg)
}

func TestIncrement(t *testing.T) {
	assert.Equal(t, 50, Increment(0, 50, 2000))
	assert.Equal(t, 250, Increment(1000, 50, 2000))
	assert.Equal(t, 251, Increment(1001, 50, 2000))
	assert.Equal(t, 2000, Increment(100000, 50, 2000))
}

func TestJobCodec(t *testing.T) {
	codec := NewJobCodec("secret", "forum-maintenance", time.Minute)
	state := JobState{
		JobID: "job-1", Step: StepBoardTopics, Start: 40, MaxTopic: 90, MaxMessage: 300, Increment: 20,
		Totals: map[int][2]int{3: {4, 1}}, Corrections: 6,
	}

	token, err := codec.Encode(state)
	require.NoError(t, err)
	got, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, state, got)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	_, err = codec.Decode(parts[0] + "." + parts[1] + ".AAAA")
	assert.ErrorIs(t, err, apperr.ErrRecountToken)

	_, err = NewJobCodec("other", "forum-maintenance", time.Minute).Decode(token)
	assert.ErrorIs(t, err, apperr.ErrRecountToken)

	_, err = NewJobCodec("secret", "someone-else", time.Minute).Decode(token)
	assert.ErrorIs(t, err, apperr.ErrRecountToken)

	fallback, err := NewJobCodec("secret", "forum-maintenance", -time.Minute).Encode(state)
	require.NoError(t, err)
	_, err = codec.Decode(fallback)
	assert.NoError(t, err, "non-positive ttl falls back to the default")

	// exp 按秒截断，纳秒级有效期签发即过期
	short := NewJobCodec("secret", "forum-maintenance", time.Nanosecond)
	stale, err := short.Encode(state)
	require.NoError(t, err)
	_, err = short.Decode(stale)
	assert.ErrorIs(t, err, apperr.ErrRecountToken)
	assert.Equal(t, apperr.CodeOf(apperr.ErrRecountToken), apperr.CodeOf(err))
}

func TestRecount_ContinueRejectsBadToken(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.svc.Recount.Continue(e.ctx, "not-a-token")
	assert.ErrorIs(t, err, apperr.ErrRecountToken)
}

func TestJobState_Progress(t *testing.T) {
	st := JobState{MaxTopic: 100, MaxMessage: 400}
	assert.Equal(t, 0, st.Progress())
	st.Start = 50
	assert.Equal(t, 6, st.Progress())
	st = JobState{Step: StepMessageBoards, Start: 200, MaxMessage: 400}
	assert.Equal(t, 81, st.Progress())
	st.Step = StepDone
	assert.Equal(t, 100, st.Progress())
}
