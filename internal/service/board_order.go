package service

import (
	"context"

	"github.com/StoryBB/StoryBB-sub002/internal/core/cache"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/model"

	"golang.org/x/sync/singleflight"
)

// BoardOrderService 缓存的版块排序快照，结构变更时由 cache.KeyBoardOrder 失效
type BoardOrderService struct {
	tree  *BoardTreeService
	cache cache.Cache
	sf    *singleflight.Group
}

// NewBoardOrderService 创建 BoardOrderService 实例
func NewBoardOrderService(tree *BoardTreeService, c cache.Cache) *BoardOrderService {
	return &BoardOrderService{
		tree:  tree,
		cache: c,
		sf:    &singleflight.Group{},
	}
}

// Get 读取快照，未命中时重建
func (s *BoardOrderService) Get(ctx context.Context) (BoardOrder, error) {
	if raw, ok := s.cache.Get(ctx, cache.KeyBoardOrder); ok {
		var order BoardOrder
		if err := order.UnmarshalBinary(raw); err == nil {
			return order, nil
		}
		logger.Warn("board order snapshot corrupt, rebuilding")
	}

	v, err, _ := s.sf.Do(cache.KeyBoardOrder, func() (interface{}, error) {
		return s.build(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(BoardOrder), nil
}

// Warm 重建并写入快照
func (s *BoardOrderService) Warm(ctx context.Context) (int, error) {
	s.cache.Invalidate(ctx, cache.KeyBoardOrder)
	order, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	return len(order), nil
}

func (s *BoardOrderService) build(ctx context.Context) (BoardOrder, error) {
	tree, err := s.tree.BuildTree(ctx)
	if err != nil {
		return nil, err
	}

	order := make(BoardOrder, 0, len(tree.Boards))
	tree.Walk(func(n *BoardNode) {
		b := n.Board
		order = append(order, model.BoardOrderEntry{
			ID:       b.ID,
			Category: b.Category,
			Parent:   b.Parent,
			Level:    b.Level,
			Order:    b.Order,
			Name:     b.Name,
		})
	})

	if raw, err := order.MarshalBinary(); err == nil {
		s.cache.Set(ctx, cache.KeyBoardOrder, raw)
	}
	return order, nil
}
