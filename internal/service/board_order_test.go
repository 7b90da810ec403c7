package service

import (
	"testing"

	"github.com/StoryBB/StoryBB-sub002/internal/core/cache"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardOrder_BinaryRoundTrip(t *testing.T) {
	order := BoardOrder{
		{ID: 1, Category: 2, Parent: 0, Level: 0, Order: 1, Name: "General"},
		{ID: 7, Category: 2, Parent: 1, Level: 1, Order: 2, Name: "Ünïcode 版块"},
		{ID: 9, Category: 3, Parent: 0, Level: 0, Order: 3},
	}
	raw, err := order.MarshalBinary()
	require.NoError(t, err)

	var got BoardOrder
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, order, got)

	assert.Error(t, got.UnmarshalBinary(raw[:len(raw)-3]))
	assert.Error(t, got.UnmarshalBinary(nil))
}

func TestBoardOrderService_CachesSnapshot(t *testing.T) {
	e := newTestEnv(t)
	e.fx.Category(1, 1)
	a := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1, Name: "A"})
	b := e.fx.Board(testutil.BoardSpec{Category: 1, Parent: a, Level: 1, Order: 2, Name: "B"})

	order, err := e.svc.BoardOrder.Get(e.ctx)
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Equal(t, model.BoardOrderEntry{ID: b, Category: 1, Parent: a, Level: 1, Order: 2, Name: "B"}, order[1])
	assert.False(t, e.cacheMissing(cache.KeyBoardOrder))

	// 缓存命中时不读数据库
	e.fx.Exec("UPDATE boards SET name = 'renamed' WHERE id_board = ?", a)
	order, err = e.svc.BoardOrder.Get(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", order[0].Name)

	// 结构变更使快照失效
	name := "Again"
	require.NoError(t, e.svc.Boards.ModifyBoard(e.ctx, admin(), b, ModifyBoardOptions{Name: &name}))
	order, err = e.svc.BoardOrder.Get(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, "renamed", order[0].Name)
	assert.Equal(t, "Again", order[1].Name)

	n, err := e.svc.BoardOrder.Warm(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBoardOrderService_CorruptSnapshot(t *testing.T) {
	e := newTestEnv(t)
	e.fx.Category(1, 1)
	e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	e.cache.Set(e.ctx, cache.KeyBoardOrder, []byte{0, 0, 0, 9})

	order, err := e.svc.BoardOrder.Get(e.ctx)
	require.NoError(t, err)
	assert.Len(t, order, 1)
}
