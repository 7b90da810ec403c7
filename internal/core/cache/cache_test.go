package cache

import (
	"context"
	"testing"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/pkg/pool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newL1Only(t *testing.T) *Store {
	t.Helper()
	l1, err := pool.NewBigCache(8, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l1.Close() })
	return NewStore(l1, nil, time.Minute)
}

func TestStore_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	s := newL1Only(t)

	_, ok := s.Get(ctx, KeyBoardOrder)
	assert.False(t, ok)

	s.Set(ctx, KeyBoardOrder, []byte("snapshot"))
	v, ok := s.Get(ctx, KeyBoardOrder)
	require.True(t, ok)
	assert.Equal(t, "snapshot", string(v))

	s.Invalidate(ctx, KeyBoardOrder, KeyMembergroupList)
	_, ok = s.Get(ctx, KeyBoardOrder)
	assert.False(t, ok)
}

func TestStore_NilIsNoop(t *testing.T) {
	var s *Store
	ctx := context.Background()
	s.Set(ctx, "k", []byte("v"))
	s.Invalidate(ctx, "k")
	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
}
