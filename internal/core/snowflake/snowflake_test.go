package snowflake

import (
	"sync"
	"testing"

	"github.com/StoryBB/StoryBB-sub002/internal/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	var (
		wg   sync.WaitGroup
		lock sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				id := Generate()
				lock.Lock()
				seen[id] = true
				lock.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1600)
}

func TestInitKeepsFirstNode(t *testing.T) {
	require.NoError(t, Init(&config.SnowflakeConfig{WorkerID: 1}))
	// 节点已存在，非法 worker id 不会被使用
	assert.NoError(t, Init(&config.SnowflakeConfig{WorkerID: -1}))
	assert.NotZero(t, Generate())
}
