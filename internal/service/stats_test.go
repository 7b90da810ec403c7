package service

import (
	"testing"

	"github.com/StoryBB/StoryBB-sub002/internal/core/cache"
	"github.com/StoryBB/StoryBB-sub002/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateLastMessages_PropagatesToAncestors(t *testing.T) {
	e := newTestEnv(t)
	e.fx.Category(1, 1)
	top := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	mid := e.fx.Board(testutil.BoardSpec{Category: 1, Parent: top, Level: 1, Order: 2})
	leaf := e.fx.Board(testutil.BoardSpec{Category: 1, Parent: mid, Level: 2, Order: 3})
	other := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 4})
	e.fx.Member(5, "Poster", 0, "")

	e.fx.Topic(top, 5, testutil.Approved(1)...)
	deep := e.fx.Topic(leaf, 5, testutil.Msg{}, testutil.Msg{Member: 5}, testutil.Msg{Member: 5, Unapproved: true})

	changed, err := e.svc.Stats.UpdateLastMessages(e.ctx, []int{leaf})
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	newest := deep.Messages[1]
	assert.Equal(t, newest, e.board(t, leaf).LastMsg)
	assert.Equal(t, newest, e.board(t, leaf).MsgUpdated)
	assert.Equal(t, 0, e.board(t, mid).LastMsg)
	assert.Equal(t, newest, e.board(t, mid).MsgUpdated)
	assert.Equal(t, 1, e.board(t, top).LastMsg)
	assert.Equal(t, newest, e.board(t, top).MsgUpdated)
	assert.Equal(t, 0, e.board(t, other).MsgUpdated)

	changed, err = e.svc.Stats.UpdateLastMessages(e.ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestUpdateTopicAndBoardStats(t *testing.T) {
	e := newTestEnv(t)
	e.fx.Category(1, 1)
	board := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	e.fx.Member(5, "Poster", 0, "")
	ref := e.fx.Topic(board, 5, testutil.Approved(4)...)
	e.fx.Exec("UPDATE topics SET num_replies = 40, unapproved_posts = 7")

	changed, err := e.svc.Stats.UpdateTopicStats(e.ctx, []int{ref.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, 3, e.fx.Int("SELECT num_replies FROM topics WHERE id_topic = ?", ref.ID))
	assert.Equal(t, 0, e.fx.Int("SELECT unapproved_posts FROM topics WHERE id_topic = ?", ref.ID))

	changed, err = e.svc.Stats.UpdateBoardStats(e.ctx, []int{board})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	b := e.board(t, board)
	assert.Equal(t, 4, b.NumPosts)
	assert.Equal(t, 1, b.NumTopics)

	changed, err = e.svc.Stats.UpdateBoardStats(e.ctx, []int{board})
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestRefreshGlobalStats(t *testing.T) {
	e := newTestEnv(t)
	e.fx.Category(1, 1)
	board := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	e.fx.Member(5, "Poster", 0, "")
	e.fx.Topic(board, 5, testutil.Approved(2)...)
	e.fx.Topic(board, 5, testutil.Msg{Deleted: 1})
	e.cache.Set(e.ctx, cache.KeyGlobalStats, []byte("stale"))

	changed, err := e.svc.Stats.RefreshGlobalStats(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, changed)
	assert.Equal(t, "1", e.fx.String("SELECT value FROM settings WHERE variable = 'totalTopics'"))
	assert.Equal(t, "2", e.fx.String("SELECT value FROM settings WHERE variable = 'totalMessages'"))
	assert.Equal(t, "3", e.fx.String("SELECT value FROM settings WHERE variable = 'maxMsgID'"))
	assert.True(t, e.cacheMissing(cache.KeyGlobalStats))

	changed, err = e.svc.Stats.RefreshGlobalStats(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)

	totals, err := e.svc.Stats.GlobalStats(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"totalTopics": 1, "totalMessages": 2, "maxMsgID": 3}, totals)
}

func TestGlobalStats_Empty(t *testing.T) {
	e := newTestEnv(t)
	totals, err := e.svc.Stats.GlobalStats(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"totalTopics": 0, "totalMessages": 0, "maxMsgID": 0}, totals)
}
