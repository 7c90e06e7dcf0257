package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/models"
)

var (
	ErrInvalidRequest = errors.New("invalid appointment")
	ErrInvalidTime    = errors.New("invalid time, use HH:MM")
	ErrInvalidRange   = errors.New("start must be before end")
	ErrSlotTaken      = errors.New("slot overlaps an existing appointment")

	log = logger.New("schedule")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Store is the part of the backend holding the agenda table
type Store interface {
	ListAppointments(ctx context.Context, providerID string, day time.Time) ([]models.Appointment, error)
	InsertAppointment(ctx context.Context, appt *models.Appointment) error
	DeleteAppointment(ctx context.Context, providerID string, id int64) error
}

// Service books provider appointments. The overlap check and the insert
// are separate statements; two concurrent bookings of the same slot can
// both succeed.
type Service struct {
	store    Store
	validate *validator.Validate
}

func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New()}
}

// Book validates and stores an appointment for the provider
func (s *Service) Book(ctx context.Context, providerID string, req models.AppointmentRequest) (*models.Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	day, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	start, err := NormalizeTime(req.Start)
	if err != nil {
		return nil, err
	}
	end, err := NormalizeTime(req.End)
	if err != nil {
		return nil, err
	}
	if start >= end {
		return nil, ErrInvalidRange
	}

	existing, err := s.store.ListAppointments(ctx, providerID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load agenda: %w", err)
	}
	if conflict, found := lo.Find(existing, func(a models.Appointment) bool {
		return Overlaps(start, end, a.Start, a.End)
	}); found {
		log.Info("Provider %s: %s-%s on %s overlaps appointment %d", providerID, start, end, req.Date, conflict.ID)
		return nil, ErrSlotTaken
	}

	appt := &models.Appointment{
		ProviderID: providerID,
		ClientID:   strings.TrimSpace(req.ClientID),
		Date:       day,
		Start:      start,
		End:        end,
		Address:    strings.TrimSpace(req.Address),
		Status:     models.AppointmentScheduled,
	}
	if err := s.store.InsertAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to save appointment: %w", err)
	}

	log.Info("Provider %s booked %s %s-%s with %s", providerID, req.Date, start, end, appt.ClientID)
	return appt, nil
}

// Day lists the provider's appointments on the date, by start time
func (s *Service) Day(ctx context.Context, providerID, date string) ([]models.Appointment, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	appts, err := s.store.ListAppointments(ctx, providerID, day)
	if err != nil {
		return nil, err
	}
	if appts == nil {
		appts = []models.Appointment{}
	}
	return appts, nil
}

// Cancel deletes one of the provider's appointments
func (s *Service) Cancel(ctx context.Context, providerID string, id int64) error {
	return s.store.DeleteAppointment(ctx, providerID, id)
}

// NormalizeTime turns H, HH, H:MM, HH:MM or HH:MM:SS into HH:MM:SS
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) > 0 && len(s) <= 2 && !strings.Contains(s, ":") {
		s += ":00"
	}

	for _, layout := range []string{"15:04", timeLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(timeLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// Overlaps reports whether [start, end) intersects [existStart, existEnd).
// All values are HH:MM:SS, which order lexically.
func Overlaps(start, end, existStart, existEnd string) bool {
	return start < existEnd && end > existStart
}
