package pool

import (
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
)

// BigCache bigcache 包装器
// 底层直接使用 bigcache 的 []byte 接口，序列化在上层处理
type BigCache struct {
	cache *bigcache.BigCache
}

// NewBigCache 创建 bigcache 实例
// capacityMB: 缓存容量（MB）
// expiration: 过期时间
func NewBigCache(capacityMB int, expiration time.Duration) (*BigCache, error) {
	config := bigcache.DefaultConfig(expiration)
	config.HardMaxCacheSize = capacityMB
	config.MaxEntrySize = 512 * 1024
	config.Verbose = false

	cache, err := bigcache.NewBigCache(config)
	if err != nil {
		return nil, err
	}

	return &BigCache{cache: cache}, nil
}

// Get 返回 []byte，由上层反序列化
func (c *BigCache) Get(key string) ([]byte, bool) {
	data, err := c.cache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set 存储 []byte
func (c *BigCache) Set(key string, value []byte) error {
	return c.cache.Set(key, value)
}

// Remove 删除键，不存在时不报错
func (c *BigCache) Remove(key string) error {
	err := c.cache.Delete(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

// Flush 清空所有缓存
func (c *BigCache) Flush() error {
	return c.cache.Reset()
}

// Close 关闭缓存
func (c *BigCache) Close() error {
	return c.cache.Close()
}
