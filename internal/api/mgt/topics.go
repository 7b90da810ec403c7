package mgt

import (
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/response"
	"github.com/StoryBB/StoryBB-sub002/internal/service"

	"github.com/gin-gonic/gin"
)

// TopicMgtHandler 主题和帖子删除接口
type TopicMgtHandler struct {
	svc *service.RemovalService
}

// NewTopicMgtHandler 创建 TopicMgtHandler
func NewTopicMgtHandler(svc *service.Services) *TopicMgtHandler {
	return &TopicMgtHandler{svc: svc.Removal}
}

// RemoveTopicsRequest 删除主题请求
type RemoveTopicsRequest struct {
	Topics            []int `json:"topics" binding:"required,min=1"`
	DecreasePostCount bool  `json:"decrease_post_count"`
	// Purge 跳过软删除直接物理删除
	Purge bool `json:"purge"`
}

// Remove DELETE /api/mgt/topics
func (h *TopicMgtHandler) Remove(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if !a.Allowed(model.PermRemoveAny) {
		response.Fail(c, apperr.ErrForbidden)
		return
	}
	var req RemoveTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.RemoveTopics(c.Request.Context(), a, req.Topics, req.DecreasePostCount, req.Purge, true); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// RestoreTopicsRequest 恢复主题请求
type RestoreTopicsRequest struct {
	Topics            []int `json:"topics" binding:"required,min=1"`
	IncreasePostCount bool  `json:"increase_post_count"`
}

// Restore POST /api/mgt/topics/restore
func (h *TopicMgtHandler) Restore(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if !a.Allowed(model.PermRemoveAny) {
		response.Fail(c, apperr.ErrForbidden)
		return
	}
	var req RestoreTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.RestoreTopics(c.Request.Context(), a, req.Topics, req.IncreasePostCount); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveMessage DELETE /api/mgt/messages/:id?decrease_post_count=1
func (h *TopicMgtHandler) RemoveMessage(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	decrease := c.DefaultQuery("decrease_post_count", "1") == "1"

	found, err := h.svc.RemoveMessage(c.Request.Context(), a, id, decrease)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"removed": found})
}
