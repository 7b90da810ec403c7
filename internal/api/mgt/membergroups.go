package mgt

import (
	"encoding/json"

	"github.com/StoryBB/StoryBB-sub002/internal/pkg/response"
	"github.com/StoryBB/StoryBB-sub002/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// MembergroupMgtHandler 用户组管理接口
type MembergroupMgtHandler struct {
	svc *service.MembergroupService
}

// NewMembergroupMgtHandler 创建 MembergroupMgtHandler
func NewMembergroupMgtHandler(svc *service.Services) *MembergroupMgtHandler {
	return &MembergroupMgtHandler{svc: svc.Groups}
}

// DeleteGroupsRequest 删除用户组请求
type DeleteGroupsRequest struct {
	Groups []int `json:"groups" binding:"required,min=1"`
}

// Delete DELETE /api/mgt/membergroups
func (h *MembergroupMgtHandler) Delete(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req DeleteGroupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.DeleteMembergroups(c.Request.Context(), a, req.Groups); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// AddMembersRequest 加入用户组请求
type AddMembersRequest struct {
	Members []int  `json:"members" binding:"required,min=1"`
	AddType string `json:"add_type" binding:"omitempty,oneof=only_primary only_additional force_primary auto"`
}

// AddMembers POST /api/mgt/membergroups/:id/members
func (h *MembergroupMgtHandler) AddMembers(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	group, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.AddType == "" {
		req.AddType = service.AddAuto
	}

	if err := h.svc.AddMembersToGroup(c.Request.Context(), a, req.Members, group, req.AddType, false, false); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveMembersRequest 移出用户组请求，groups 省略时移出全部用户组
type RemoveMembersRequest struct {
	Members []int `json:"members" binding:"required,min=1"`
	Groups  []int `json:"groups"`
}

// RemoveMembers DELETE /api/mgt/membergroups/members
func (h *MembergroupMgtHandler) RemoveMembers(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req RemoveMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.RemoveMembersFromGroups(c.Request.Context(), a, req.Members, req.Groups, false, false); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// AddCharactersRequest 角色加入组请求，目标组在路径中
type AddCharactersRequest struct {
	Characters []int `json:"characters" binding:"required,min=1"`
}

// RemoveCharactersRequest 角色移出组请求，groups 为空时移出全部组
type RemoveCharactersRequest struct {
	Characters []int `json:"characters" binding:"required,min=1"`
	Groups     []int `json:"groups"`
}

// bindStrictJSON 拒绝请求类型中不存在的字段，再执行 binding 校验
func bindStrictJSON(c *gin.Context, obj interface{}) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(obj); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(obj)
}

// AddCharacters POST /api/mgt/membergroups/:id/characters
func (h *MembergroupMgtHandler) AddCharacters(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	group, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req AddCharactersRequest
	if err := bindStrictJSON(c, &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.AddCharactersToGroup(c.Request.Context(), a, req.Characters, group, false, false); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveCharacters DELETE /api/mgt/membergroups/characters
func (h *MembergroupMgtHandler) RemoveCharacters(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req RemoveCharactersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.RemoveCharactersFromGroups(c.Request.Context(), a, req.Characters, req.Groups, false, false); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}
