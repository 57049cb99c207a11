package router

import (
	"github.com/labstack/echo/v4"

	"instapro/internal/adapter/api/handler"
	"instapro/internal/adapter/api/middleware"
	"instapro/internal/infrastructure/ratelimit"
)

// SetupChatRouter sets up all chat-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate)

	// Conversations
	chatGroup.GET("", chatHandler.GetUserChats)
	chatGroup.POST("/groups", chatHandler.CreateGroup)
	chatGroup.POST("/direct", chatHandler.OpenDirectChat)
	chatGroup.GET("/:id", chatHandler.GetChatByID)
	chatGroup.PATCH("/:id", chatHandler.UpdateChat)

	// Messages
	chatGroup.GET("/:id/messages", chatHandler.GetChatMessages)
	chatGroup.POST("/:id/messages", chatHandler.SendMessage, middleware.RateLimit(limiter, ratelimit.ActionSendMessage))
	chatGroup.DELETE("/:id/messages/:messageId", chatHandler.DeleteMessage)

	// Group membership
	chatGroup.POST("/:id/members", chatHandler.AddMember)
	chatGroup.PUT("/:id/members/:username/role", chatHandler.SetMemberRole)
}
