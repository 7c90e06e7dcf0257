package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/consertja/consertja/internal/auth"
	"github.com/consertja/consertja/internal/models"
)

// AuthMiddleware validates the bearer token and sets userID and role in context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		authenticate(c, strings.TrimPrefix(authHeader, "Bearer "))
	}
}

// TokenAuthMiddleware accepts the token from the token query parameter, for
// WebSocket clients that cannot set headers, and falls back to the
// Authorization header
func TokenAuthMiddleware() gin.HandlerFunc {
	header := AuthMiddleware()
	return func(c *gin.Context) {
		if token := c.Query("token"); token != "" {
			authenticate(c, token)
			return
		}
		header(c)
	}
}

// RequireRole rejects sessions acting under another role
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		self, ok := currentSession(c)
		if !ok || self.Role != role {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed for this user type"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, token string) {
	claims, err := auth.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		c.Abort()
		return
	}

	self, err := auth.SessionFromClaims(claims)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session in token"})
		c.Abort()
		return
	}

	c.Set("userID", self.UserID)
	c.Set("role", self.Role)

	c.Next()
}

// currentSession reads the session set by the auth middleware
func currentSession(c *gin.Context) (models.Session, bool) {
	userID := c.GetString("userID")
	value, _ := c.Get("role")
	role, _ := value.(models.Role)

	self := models.Session{UserID: userID, Role: role}
	return self, self.Authenticated() && self.Role.Valid()
}
