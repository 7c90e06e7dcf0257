package api

import (
	"github.com/gin-gonic/gin"

	"github.com/consertja/consertja/internal/models"
)

// Handlers groups the route handlers mounted under /api
type Handlers struct {
	Auth      *AuthHandler
	Messages  *MessageHandler
	Schedule  *ScheduleHandler
	Directory *DirectoryHandler
	WebSocket gin.HandlerFunc
}

// RegisterRoutes mounts the API on router
func RegisterRoutes(router *gin.Engine, h Handlers) {
	// Public routes
	router.POST("/api/auth/login", h.Auth.Login)

	authorized := router.Group("/api")
	authorized.Use(AuthMiddleware())
	{
		authorized.GET("/auth/me", h.Auth.GetMe)
		authorized.GET("/unread", h.Messages.GetUnread)

		authorized.GET("/conversations", h.Messages.GetConversations)
		authorized.GET("/conversations/:counterpartID/messages", h.Messages.GetConversation)
		authorized.POST("/conversations/:counterpartID/messages", h.Messages.SendMessage)
		authorized.PUT("/conversations/:counterpartID/read", h.Messages.MarkConversationRead)
	}

	agenda := router.Group("/api/agenda")
	agenda.Use(AuthMiddleware(), RequireRole(models.RoleProvider))
	{
		agenda.GET("", h.Schedule.GetDay)
		agenda.POST("", h.Schedule.Book)
		agenda.DELETE("/:id", h.Schedule.Cancel)
	}

	if h.Directory != nil {
		authorized.GET("/providers", h.Directory.SearchProviders)
		authorized.GET("/providers/:providerID/reviews", h.Directory.GetReviews)
		authorized.POST("/providers/:providerID/reviews", RequireRole(models.RoleClient), h.Directory.SubmitReview)
		authorized.GET("/reviews", RequireRole(models.RoleProvider), h.Directory.GetOwnReviews)
	}

	if h.WebSocket != nil {
		router.GET("/api/ws", TokenAuthMiddleware(), h.WebSocket)
	}
}
