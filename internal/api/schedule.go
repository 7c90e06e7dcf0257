package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/consertja/consertja/internal/database"
	"github.com/consertja/consertja/internal/models"
	"github.com/consertja/consertja/internal/schedule"
)

// ScheduleHandler handles the provider agenda routes
type ScheduleHandler struct {
	Schedule *schedule.Service
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(svc *schedule.Service) *ScheduleHandler {
	return &ScheduleHandler{Schedule: svc}
}

// GetDay lists the provider's appointments on ?date=YYYY-MM-DD, today by default
func (h *ScheduleHandler) GetDay(c *gin.Context) {
	self, _ := currentSession(c)
	date := c.DefaultQuery("date", time.Now().Format("2006-01-02"))

	appts, err := h.Schedule.Day(c.Request.Context(), self.UserID, date)
	if errors.Is(err, schedule.ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, use YYYY-MM-DD"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load agenda"})
		return
	}

	c.JSON(http.StatusOK, appts)
}

// Book creates an appointment
func (h *ScheduleHandler) Book(c *gin.Context) {
	self, _ := currentSession(c)

	var req models.AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appt, err := h.Schedule.Book(c.Request.Context(), self.UserID, req)
	switch {
	case errors.Is(err, schedule.ErrSlotTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, schedule.ErrInvalidRequest),
		errors.Is(err, schedule.ErrInvalidTime),
		errors.Is(err, schedule.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save appointment"})
	default:
		c.JSON(http.StatusCreated, appt)
	}
}

// Cancel deletes an appointment
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	self, _ := currentSession(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appointment ID"})
		return
	}

	err = h.Schedule.Cancel(c.Request.Context(), self.UserID, id)
	if errors.Is(err, database.ErrAppointmentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Appointment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel appointment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Appointment cancelled"})
}
