package api

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/consertja/consertja/internal/models"
)

// MockDB implements the DBInterface for testing
type MockDB struct {
	mock.Mock
}

func (m *MockDB) GetAccessByCPF(ctx context.Context, cpf string) (*models.Access, error) {
	args := m.Called(ctx, cpf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Access), args.Error(1)
}

func (m *MockDB) LookupRole(ctx context.Context, userID string) (models.Role, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Role), args.Error(1)
}

func (m *MockDB) ListConversation(ctx context.Context, key models.ConversationKey) ([]models.Message, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockDB) InsertMessage(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockDB) GetMessage(ctx context.Context, id int64) (models.Message, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MockDB) MarkConversationRead(ctx context.Context, key models.ConversationKey, sentBy models.Role) (int64, error) {
	args := m.Called(ctx, key, sentBy)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDB) CountUnread(ctx context.Context, userID string, role models.Role) (int, error) {
	args := m.Called(ctx, userID, role)
	return args.Int(0), args.Error(1)
}

func (m *MockDB) ListMessagesForUser(ctx context.Context, userID string, role models.Role) ([]models.Message, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockDB) CounterpartNames(ctx context.Context, role models.Role, ids []string) (map[string]string, error) {
	args := m.Called(ctx, role, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockDB) ListAppointments(ctx context.Context, providerID string, day time.Time) ([]models.Appointment, error) {
	args := m.Called(ctx, providerID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Appointment), args.Error(1)
}

func (m *MockDB) InsertAppointment(ctx context.Context, appt *models.Appointment) error {
	args := m.Called(ctx, appt)
	return args.Error(0)
}

func (m *MockDB) DeleteAppointment(ctx context.Context, providerID string, id int64) error {
	args := m.Called(ctx, providerID, id)
	return args.Error(0)
}

func (m *MockDB) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDB) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDB) ListProviders(ctx context.Context) ([]models.Provider, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Provider), args.Error(1)
}

func (m *MockDB) ProviderRating(ctx context.Context, providerID string) (float64, int, error) {
	args := m.Called(ctx, providerID)
	return args.Get(0).(float64), args.Int(1), args.Error(2)
}

func (m *MockDB) ListReviews(ctx context.Context, providerID string, limit int) ([]models.Review, error) {
	args := m.Called(ctx, providerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *MockDB) InsertReview(ctx context.Context, review *models.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}
