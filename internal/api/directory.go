package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/consertja/consertja/internal/directory"
	"github.com/consertja/consertja/internal/models"
)

const providerPageReviews = 5

// DirectoryHandler handles the provider search and review routes
type DirectoryHandler struct {
	Directory *directory.Service
}

// NewDirectoryHandler creates a new directory handler
func NewDirectoryHandler(svc *directory.Service) *DirectoryHandler {
	return &DirectoryHandler{Directory: svc}
}

// SearchProviders lists providers matching ?q=, ordered by ?sort=asc|desc
func (h *DirectoryHandler) SearchProviders(c *gin.Context) {
	order, err := directory.ParseSortOrder(c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	providers, err := h.Directory.Search(c.Request.Context(), c.Query("q"), order)
	if err != nil {
		log.Error("Provider search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load providers"})
		return
	}
	if providers == nil {
		providers = []models.Provider{}
	}

	c.JSON(http.StatusOK, providers)
}

// GetReviews returns the rating summary of :providerID. ?limit= defaults to
// the provider page size; 0 returns every review.
func (h *DirectoryHandler) GetReviews(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(providerPageReviews)))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	h.writeReviews(c, c.Param("providerID"), limit)
}

// GetOwnReviews returns every review of the session provider
func (h *DirectoryHandler) GetOwnReviews(c *gin.Context) {
	self, _ := currentSession(c)
	h.writeReviews(c, self.UserID, 0)
}

func (h *DirectoryHandler) writeReviews(c *gin.Context, providerID string, limit int) {
	summary, err := h.Directory.Reviews(c.Request.Context(), providerID, limit)
	if err != nil {
		log.Error("Failed to load reviews of %s: %v", providerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load reviews"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// SubmitReview stores the session client's review of :providerID
func (h *DirectoryHandler) SubmitReview(c *gin.Context) {
	self, _ := currentSession(c)

	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := h.Directory.Submit(c.Request.Context(), self, c.Param("providerID"), req)
	switch {
	case errors.Is(err, directory.ErrAlreadyReviewed):
		c.JSON(http.StatusConflict, gin.H{"error": "Você já avaliou este profissional"})
	case errors.Is(err, directory.ErrNotClient):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, directory.ErrEmptyComment), errors.Is(err, directory.ErrInvalidReview):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		log.Error("Failed to save review: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save review"})
	default:
		c.JSON(http.StatusCreated, review)
	}
}
