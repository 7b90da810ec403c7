package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigCacheRoundTrip(t *testing.T) {
	cache, err := NewBigCache(8, 10*time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set("board_order", []byte("1,2,3")))
	v, ok := cache.Get("board_order")
	require.True(t, ok)
	assert.Equal(t, "1,2,3", string(v))

	require.NoError(t, cache.Remove("board_order"))
	_, ok = cache.Get("board_order")
	assert.False(t, ok)

	// 删除不存在的键
	assert.NoError(t, cache.Remove("missing"))
}

func TestBigCacheFlush(t *testing.T) {
	cache, err := NewBigCache(8, 10*time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Set(k, []byte(k)))
	}
	require.NoError(t, cache.Flush())
	for _, k := range []string{"a", "b", "c"} {
		_, ok := cache.Get(k)
		assert.False(t, ok)
	}
}

func BenchmarkBigCache_Get(b *testing.B) {
	cache, err := NewBigCache(64, 10*time.Minute)
	if err != nil {
		b.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	payload := []byte("1,2,3,4,5,6,7,8,9,10")
	_ = cache.Set("board_order", payload)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		cache.Get("board_order")
	}
}
