package mgt

import (
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/response"
	"github.com/StoryBB/StoryBB-sub002/internal/service"

	"github.com/gin-gonic/gin"
)

// CacheHandler 缓存管理接口
type CacheHandler struct {
	order *service.BoardOrderService
}

// NewCacheHandler 创建 CacheHandler
func NewCacheHandler(svc *service.Services) *CacheHandler {
	return &CacheHandler{order: svc.BoardOrder}
}

// Prewarm POST /api/mgt/cache/prewarm
// 丢弃版块顺序快照并立即重建
func (h *CacheHandler) Prewarm(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if !a.Allowed(model.PermManageBoards) {
		response.Fail(c, apperr.ErrForbidden)
		return
	}
	n, err := h.order.Warm(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{"boards": n}, "cache prewarmed")
}
