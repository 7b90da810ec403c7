package snowflake

import (
	"sync"

	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Init 以配置的 worker id 创建节点，重复调用保留第一次的节点
func Init(cfg *config.SnowflakeConfig) error {
	mu.Lock()
	defer mu.Unlock()
	if node != nil {
		return nil
	}
	n, err := snowflake.NewNode(cfg.WorkerID)
	if err != nil {
		logger.Error("failed to initialize snowflake", logger.ErrorField(err), logger.Int64("worker_id", cfg.WorkerID))
		return err
	}
	node = n
	logger.Info("snowflake initialized", logger.Int64("worker_id", cfg.WorkerID))
	return nil
}

// Generate 生成审计记录 id，未初始化时使用 worker 0
func Generate() int64 {
	mu.Lock()
	n := node
	mu.Unlock()
	if n == nil {
		_ = Init(&config.SnowflakeConfig{WorkerID: 0})
		mu.Lock()
		n = node
		mu.Unlock()
	}
	return n.Generate().Int64()
}
