package v1

import (
	"strconv"

	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/response"
	"github.com/StoryBB/StoryBB-sub002/internal/service"

	"github.com/gin-gonic/gin"
)

// BoardHandler 公开的版块索引
type BoardHandler struct {
	order *service.BoardOrderService
	stats *service.StatsService
}

// NewBoardHandler 创建 BoardHandler
func NewBoardHandler(svc *service.Services) *BoardHandler {
	return &BoardHandler{order: svc.BoardOrder, stats: svc.Stats}
}

// RegisterRoutes 注册公开接口
func RegisterRoutes(g *gin.RouterGroup, svc *service.Services) {
	h := NewBoardHandler(svc)
	g.GET("/boards", h.List)
	g.GET("/board/:id", h.Get)
	g.GET("/stats", h.Stats)
}

// List GET /api/v1/boards
func (h *BoardHandler) List(c *gin.Context) {
	order, err := h.order.Get(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, order)
}

// Get GET /api/v1/board/:id
// 返回版块及其直接子版块
func (h *BoardHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}

	order, err := h.order.Get(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}

	var board *model.BoardOrderEntry
	children := make([]model.BoardOrderEntry, 0)
	for i, e := range order {
		switch {
		case e.ID == id:
			board = &order[i]
		case e.Parent == id:
			children = append(children, e)
		}
	}
	if board == nil {
		response.NotFound(c, "board not found")
		return
	}
	response.Success(c, gin.H{"board": board, "children": children})
}

// Stats GET /api/v1/stats
func (h *BoardHandler) Stats(c *gin.Context) {
	totals, err := h.stats.GlobalStats(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, totals)
}
