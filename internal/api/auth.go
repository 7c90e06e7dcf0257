package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/consertja/consertja/internal/auth"
	"github.com/consertja/consertja/internal/database"
	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/models"
)

var log = logger.New("api")

// AuthHandler handles authentication routes
type AuthHandler struct {
	DB database.DBInterface
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db database.DBInterface) *AuthHandler {
	return &AuthHandler{DB: db}
}

// Login checks a CPF and password and issues a token
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	self, err := auth.Authenticate(c.Request.Context(), h.DB, input.CPF, input.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	case errors.Is(err, models.ErrUnknownRole):
		c.JSON(http.StatusForbidden, gin.H{"error": "Unknown user type"})
		return
	case err != nil:
		log.Error("Failed to look up access: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		return
	}

	token, expiry, err := auth.GenerateToken(self)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	log.Info("User %s logged in as %s", self.UserID, self.Role)
	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"expiry":  expiry,
		"user_id": self.UserID,
		"role":    self.Role,
	})
}

// GetMe returns the session carried by the token
func (h *AuthHandler) GetMe(c *gin.Context) {
	self, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	c.JSON(http.StatusOK, self)
}
