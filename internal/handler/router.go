package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/caldershaw/ragd/internal/middleware"
)

type RouterDeps struct {
	Chat          *ChatHandler
	Documents     *DocumentHandler
	Conversations *ConversationHandler
	Health        *HealthHandler
	AuthEnable    bool
	JWTSecret     []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Health.Health)

	group := api.Group("")
	if deps.AuthEnable {
		group.Use(middleware.JWTAuth(deps.JWTSecret))
	}
	group.POST("/chat", deps.Chat.Chat)
	group.POST("/chat/stream", deps.Chat.ChatStream)

	group.POST("/documents", deps.Documents.Add)
	group.POST("/documents/bulk", deps.Documents.AddBulk)
	group.DELETE("/documents", deps.Documents.DeleteAll)
	group.GET("/documents/count", deps.Documents.Count)

	group.GET("/conversations", deps.Conversations.List)
	group.GET("/conversations/:id", deps.Conversations.Get)
	group.DELETE("/conversations/:id", deps.Conversations.Delete)
	group.DELETE("/conversations", deps.Conversations.DeleteAll)
	group.POST("/conversations/:id/export", deps.Conversations.Export)
}
