package mgt

import (
	"github.com/StoryBB/StoryBB-sub002/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册管理接口，g 上应已挂好认证中间件
func RegisterRoutes(g *gin.RouterGroup, svc *service.Services) {
	boards := NewBoardMgtHandler(svc)
	groups := NewMembergroupMgtHandler(svc)
	topics := NewTopicMgtHandler(svc)
	maint := NewMaintenanceHandler(svc)
	cache := NewCacheHandler(svc)

	b := g.Group("/boards")
	{
		b.GET("/tree", boards.Tree)
		b.POST("", boards.Create)
		b.PUT("/:id", boards.Update)
		b.DELETE("", boards.Delete)
		b.POST("/reorder", boards.Reorder)
	}

	mg := g.Group("/membergroups")
	{
		mg.DELETE("", groups.Delete)
		mg.POST("/:id/members", groups.AddMembers)
		mg.DELETE("/members", groups.RemoveMembers)
		mg.POST("/:id/characters", groups.AddCharacters)
		mg.DELETE("/characters", groups.RemoveCharacters)
	}

	g.DELETE("/topics", topics.Remove)
	g.POST("/topics/restore", topics.Restore)
	g.DELETE("/messages/:id", topics.RemoveMessage)

	m := g.Group("/maintenance")
	{
		m.POST("/recount", maint.Recount)
		m.POST("/last-messages", maint.LastMessages)
		m.POST("/stats", maint.GlobalStats)
	}

	g.POST("/cache/prewarm", cache.Prewarm)
}
