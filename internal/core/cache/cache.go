package cache

import (
	"context"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/pool"

	"github.com/redis/go-redis/v9"
)

// 需要显式失效的缓存键
const (
	KeyBoardOrder      = "forum:board_order"
	KeyMembergroupList = "forum:membergroup_list"
	KeyGlobalStats     = "forum:stats"
)

// Invalidator 缓存失效接口，变更版块结构或用户组后调用
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

// Cache 可读写的缓存
type Cache interface {
	Invalidator
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Store 两级缓存：L1 进程内 bigcache，L2 redis
// 任一级为 nil 时跳过该级，nil *Store 上的调用都是空操作
type Store struct {
	l1  *pool.BigCache
	l2  *redis.Client
	ttl time.Duration
}

// NewStore 创建两级缓存
func NewStore(l1 *pool.BigCache, l2 *redis.Client, ttl time.Duration) *Store {
	return &Store{l1: l1, l2: l2, ttl: ttl}
}

// Get 先查 L1，再查 L2 并回填 L1
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	if s.l1 != nil {
		if v, ok := s.l1.Get(key); ok {
			return v, true
		}
	}
	if s.l2 == nil {
		return nil, false
	}
	v, err := s.l2.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("cache l2 get failed", logger.String("key", key), logger.ErrorField(err))
		}
		return nil, false
	}
	if s.l1 != nil {
		_ = s.l1.Set(key, v)
	}
	return v, true
}

// Set 写入两级缓存
func (s *Store) Set(ctx context.Context, key string, value []byte) {
	if s == nil {
		return
	}
	if s.l1 != nil {
		if err := s.l1.Set(key, value); err != nil {
			logger.Warn("cache l1 set failed", logger.String("key", key), logger.ErrorField(err))
		}
	}
	if s.l2 != nil {
		if err := s.l2.Set(ctx, key, value, s.ttl).Err(); err != nil {
			logger.Warn("cache l2 set failed", logger.String("key", key), logger.ErrorField(err))
		}
	}
}

// Invalidate 删除两级缓存中的键，失败只记录日志
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if s == nil || len(keys) == 0 {
		return
	}
	for _, key := range keys {
		if s.l1 != nil {
			if err := s.l1.Remove(key); err != nil {
				logger.Warn("cache l1 remove failed", logger.String("key", key), logger.ErrorField(err))
			}
		}
	}
	if s.l2 != nil {
		if err := s.l2.Del(ctx, keys...).Err(); err != nil {
			logger.Warn("cache l2 del failed", logger.Any("keys", keys), logger.ErrorField(err))
		}
	}
	logger.Debug("cache invalidated", logger.Any("keys", keys))
}
