package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/service"
)

// Runtime 启动预热状态
type Runtime struct {
	mu           sync.RWMutex
	boards       int
	statsChanged int
	errors       []string
	loadedAt     time.Time
}

var (
	rt   *Runtime
	once sync.Once
)

// RuntimeConfig Runtime 配置
type RuntimeConfig struct {
	Services *service.Services
}

// Init 初始化 Runtime，预热失败只记录不阻止启动
func Init(ctx context.Context, cfg *RuntimeConfig) error {
	var initErr error
	once.Do(func() {
		rt = &Runtime{}
		initErr = rt.warmup(ctx, cfg)
	})
	return initErr
}

// Get 获取 Runtime 实例
func Get() *Runtime {
	return rt
}

// warmup 构建版块顺序快照并校正全站统计
func (r *Runtime) warmup(ctx context.Context, cfg *RuntimeConfig) error {
	start := time.Now()
	logger.Info("runtime warmup started")

	var errs []string
	boards, err := cfg.Services.BoardOrder.Warm(ctx)
	if err != nil {
		logger.Error("warmup board order failed", logger.ErrorField(err))
		errs = append(errs, "board_order: "+err.Error())
	} else {
		logger.Info("warmup board order", logger.Int("count", boards))
	}

	changed, err := cfg.Services.Stats.RefreshGlobalStats(ctx)
	if err != nil {
		logger.Error("warmup global stats failed", logger.ErrorField(err))
		errs = append(errs, "global_stats: "+err.Error())
	}

	r.mu.Lock()
	r.boards = boards
	r.statsChanged = changed
	r.errors = errs
	r.loadedAt = time.Now()
	r.mu.Unlock()

	logger.Info("runtime warmup completed", logger.Duration("duration", time.Since(start)))
	if len(errs) > 0 {
		return fmt.Errorf("runtime warmup: %d step(s) failed", len(errs))
	}
	return nil
}

// Reload 重新预热
func (r *Runtime) Reload(ctx context.Context, cfg *RuntimeConfig) error {
	return r.warmup(ctx, cfg)
}

// Status 返回运行时状态
func (r *Runtime) Status() map[string]interface{} {
	if r == nil {
		return map[string]interface{}{"loaded": false}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]interface{}{
		"loaded":        !r.loadedAt.IsZero(),
		"board_count":   r.boards,
		"stats_changed": r.statsChanged,
		"errors":        r.errors,
		"loaded_at":     r.loadedAt.Format("2006-01-02 15:04:05"),
	}
}

// WarmUpLog 预热日志
func WarmUpLog() string {
	if rt == nil {
		return "runtime not initialized"
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return fmt.Sprintf("Boards: %d, Stats corrected: %d, Loaded: %s",
		rt.boards, rt.statsChanged, rt.loadedAt.Format("2006-01-02 15:04:05"))
}
