package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/consertja/consertja/internal/models"
)

var (
	ErrAccessNotFound      = errors.New("access not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrDuplicateMessage    = errors.New("message already exists")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDuplicateReview     = errors.New("review already exists")
)

type DBInterface interface {
	// Access methods
	GetAccessByCPF(ctx context.Context, cpf string) (*models.Access, error)
	LookupRole(ctx context.Context, userID string) (models.Role, error)

	// Message methods
	ListConversation(ctx context.Context, key models.ConversationKey) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.Message) error
	GetMessage(ctx context.Context, id int64) (models.Message, error)
	MarkConversationRead(ctx context.Context, key models.ConversationKey, sentBy models.Role) (int64, error)
	CountUnread(ctx context.Context, userID string, role models.Role) (int, error)
	ListMessagesForUser(ctx context.Context, userID string, role models.Role) ([]models.Message, error)
	CounterpartNames(ctx context.Context, role models.Role, ids []string) (map[string]string, error)

	// Agenda methods
	ListAppointments(ctx context.Context, providerID string, day time.Time) ([]models.Appointment, error)
	InsertAppointment(ctx context.Context, appt *models.Appointment) error
	DeleteAppointment(ctx context.Context, providerID string, id int64) error

	// Provider and review methods
	ListProviders(ctx context.Context) ([]models.Provider, error)
	ProviderRating(ctx context.Context, providerID string) (float64, int, error)
	ListReviews(ctx context.Context, providerID string, limit int) ([]models.Review, error)
	InsertReview(ctx context.Context, review *models.Review) error

	// Common methods
	Migrate(ctx context.Context) error
	Close() error
}

type DatabaseType string

const PostgreSQL DatabaseType = "postgres"

// NewDatabase opens the backend for the given type. Supabase projects are
// plain Postgres and use the PostgreSQL type.
func NewDatabase(dbType DatabaseType, connStr string, opts ...Option) (DBInterface, error) {
	switch dbType {
	case PostgreSQL:
		return NewPostgresDB(connStr, opts...)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
