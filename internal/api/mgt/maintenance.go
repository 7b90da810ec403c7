package mgt

import (
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/response"
	"github.com/StoryBB/StoryBB-sub002/internal/service"

	"github.com/gin-gonic/gin"
)

// MaintenanceHandler 统计修复接口
type MaintenanceHandler struct {
	recount *service.RecountService
	stats   *service.StatsService
}

// NewMaintenanceHandler 创建 MaintenanceHandler
func NewMaintenanceHandler(svc *service.Services) *MaintenanceHandler {
	return &MaintenanceHandler{recount: svc.Recount, stats: svc.Stats}
}

func (h *MaintenanceHandler) admin(c *gin.Context) bool {
	a, ok := actor(c)
	if !ok {
		return false
	}
	if !a.Allowed(model.PermAdminForum) {
		response.Fail(c, apperr.ErrForbidden)
		return false
	}
	return true
}

// RecountRequest 续跑令牌，为空时开始新任务
type RecountRequest struct {
	Token string `json:"token"`
}

// Recount POST /api/mgt/maintenance/recount
// 每次调用在预算内推进任务，返回的 token 原样提交以继续
func (h *MaintenanceHandler) Recount(c *gin.Context) {
	if !h.admin(c) {
		return
	}
	var req RecountRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	cont, err := h.recount.Continue(c.Request.Context(), req.Token)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, cont)
}

// LastMessages POST /api/mgt/maintenance/last-messages
func (h *MaintenanceHandler) LastMessages(c *gin.Context) {
	if !h.admin(c) {
		return
	}
	changed, err := h.stats.UpdateLastMessages(c.Request.Context(), nil)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}

// GlobalStats POST /api/mgt/maintenance/stats
func (h *MaintenanceHandler) GlobalStats(c *gin.Context) {
	if !h.admin(c) {
		return
	}
	changed, err := h.stats.RefreshGlobalStats(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}
