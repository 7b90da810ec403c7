package mgt

import (
	"strconv"

	"github.com/StoryBB/StoryBB-sub002/internal/middleware"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/response"
	"github.com/StoryBB/StoryBB-sub002/internal/service"

	"github.com/gin-gonic/gin"
)

// BoardMgtHandler 版块管理接口
type BoardMgtHandler struct {
	boards *service.BoardService
	order  *service.BoardOrderService
}

// NewBoardMgtHandler 创建 BoardMgtHandler
func NewBoardMgtHandler(svc *service.Services) *BoardMgtHandler {
	return &BoardMgtHandler{boards: svc.Boards, order: svc.BoardOrder}
}

// actor 取当前操作者，未认证时已写出 401
func actor(c *gin.Context) (*model.Actor, bool) {
	a := middleware.ActorFrom(c)
	if a == nil {
		response.Unauthorized(c, "unauthorized")
		return nil, false
	}
	return a, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

// Tree GET /api/mgt/boards/tree
func (h *BoardMgtHandler) Tree(c *gin.Context) {
	order, err := h.order.Get(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, order)
}

// Create POST /api/mgt/boards
func (h *BoardMgtHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateBoardOptions
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	id, err := h.boards.CreateBoard(c.Request.Context(), a, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"id_board": id})
}

// Update PUT /api/mgt/boards/:id
func (h *BoardMgtHandler) Update(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req service.ModifyBoardOptions
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.boards.ModifyBoard(c.Request.Context(), a, id, req); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// DeleteBoardsRequest 删除版块请求，move_children_to 为空时连同子版块一起删除
type DeleteBoardsRequest struct {
	Boards         []int `json:"boards" binding:"required,min=1"`
	MoveChildrenTo *int  `json:"move_children_to"`
}

// Delete DELETE /api/mgt/boards
func (h *BoardMgtHandler) Delete(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req DeleteBoardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.boards.DeleteBoards(c.Request.Context(), a, req.Boards, req.MoveChildrenTo); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Reorder POST /api/mgt/boards/reorder
func (h *BoardMgtHandler) Reorder(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if !a.Allowed(model.PermManageBoards) {
		response.Fail(c, apperr.ErrForbidden)
		return
	}
	changed, err := h.boards.ReorderBoards(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}
