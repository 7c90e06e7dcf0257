package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/consertja/consertja/internal/chat"
	"github.com/consertja/consertja/internal/models"
	"github.com/consertja/consertja/internal/session"
)

// MessageHandler handles conversation routes
type MessageHandler struct {
	Chat *chat.Service
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(svc *chat.Service) *MessageHandler {
	return &MessageHandler{Chat: svc}
}

// GetUnread returns the number of unread messages addressed to the user
func (h *MessageHandler) GetUnread(c *gin.Context) {
	self, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	count, err := h.Chat.NewUnreadCounter(session.New(self, nil)).Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count unread messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// GetConversations returns the chat list, optionally filtered by name
func (h *MessageHandler) GetConversations(c *gin.Context) {
	self, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	summaries, err := h.Chat.Summaries(c.Request.Context(), self, c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// GetConversation returns the messages exchanged with the counterpart
func (h *MessageHandler) GetConversation(c *gin.Context) {
	feed, ok := h.feed(c)
	if !ok {
		return
	}

	messages, err := feed.LoadInitial(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// SendMessage writes a message to the counterpart
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req models.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feed, ok := h.feed(c)
	if !ok {
		return
	}

	message, err := feed.Send(c.Request.Context(), req.Content)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrSendFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Message could not be sent"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, message)
	}
}

// MarkConversationRead marks the counterpart's messages read
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	self, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	counter := h.Chat.NewUnreadCounter(session.New(self, nil))
	err := h.Chat.NewReadSync(counter).MarkRead(c.Request.Context(), self, c.Param("counterpartID"))
	if errors.Is(err, chat.ErrNoCounterpart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark conversation as read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation marked as read", "unread": counter.Count()})
}

func (h *MessageHandler) feed(c *gin.Context) (*chat.Feed, bool) {
	self, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}

	feed, err := h.Chat.OpenFeed(self, c.Param("counterpartID"), nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return feed, true
}
