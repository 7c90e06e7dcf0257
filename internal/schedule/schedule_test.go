package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/consertja/consertja/internal/database"
	"github.com/consertja/consertja/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListAppointments(ctx context.Context, providerID string, day time.Time) ([]models.Appointment, error) {
	args := m.Called(ctx, providerID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Appointment), args.Error(1)
}

func (m *MockStore) InsertAppointment(ctx context.Context, appt *models.Appointment) error {
	args := m.Called(ctx, appt)
	return args.Error(0)
}

func (m *MockStore) DeleteAppointment(ctx context.Context, providerID string, id int64) error {
	args := m.Called(ctx, providerID, id)
	return args.Error(0)
}

var day = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "9:30", want: "09:30:00"},
		{input: "14:05", want: "14:05:00"},
		{input: "14", want: "14:00:00"},
		{input: "8", want: "08:00:00"},
		{input: "14:05:30", want: "14:05:30"},
		{input: " 07:00 ", want: "07:00:00"},
		{input: "25:00", wantErr: true},
		{input: "12:60", wantErr: true},
		{input: "meio-dia", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeTime(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		want       bool
	}{
		{name: "inside", start: "14:30:00", end: "15:00:00", want: true},
		{name: "covers", start: "13:00:00", end: "17:00:00", want: true},
		{name: "starts during", start: "15:00:00", end: "16:30:00", want: true},
		{name: "ends during", start: "13:00:00", end: "14:30:00", want: true},
		{name: "touches end", start: "16:00:00", end: "17:00:00", want: false},
		{name: "touches start", start: "13:00:00", end: "14:00:00", want: false},
		{name: "before", start: "08:00:00", end: "09:00:00", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.start, tt.end, "14:00:00", "16:00:00"))
		})
	}
}

func TestBook(t *testing.T) {
	existing := []models.Appointment{{ID: 1, ProviderID: "p1", Start: "14:00:00", End: "16:00:00"}}

	tests := []struct {
		name    string
		req     models.AppointmentRequest
		setup   func(*MockStore)
		wantErr error
	}{
		{
			name: "free slot",
			req:  models.AppointmentRequest{ClientID: "c1", Date: "2026-10-19", Start: "9:00", End: "10:30", Address: " Rua A, 10 "},
			setup: func(m *MockStore) {
				m.On("ListAppointments", mock.Anything, "p1", day).Return(existing, nil)
				m.On("InsertAppointment", mock.Anything, mock.MatchedBy(func(a *models.Appointment) bool {
					return a.Start == "09:00:00" && a.End == "10:30:00" &&
						a.Status == models.AppointmentScheduled && a.Address == "Rua A, 10"
				})).Run(func(args mock.Arguments) {
					args.Get(1).(*models.Appointment).ID = 2
				}).Return(nil)
			},
		},
		{
			name: "overlapping slot",
			req:  models.AppointmentRequest{ClientID: "c1", Date: "2026-10-19", Start: "15:00", End: "17:00"},
			setup: func(m *MockStore) {
				m.On("ListAppointments", mock.Anything, "p1", day).Return(existing, nil)
			},
			wantErr: ErrSlotTaken,
		},
		{
			name:    "missing client",
			req:     models.AppointmentRequest{Date: "2026-10-19", Start: "9:00", End: "10:00"},
			setup:   func(m *MockStore) {},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "bad date",
			req:     models.AppointmentRequest{ClientID: "c1", Date: "19/10/2026", Start: "9:00", End: "10:00"},
			setup:   func(m *MockStore) {},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "bad time",
			req:     models.AppointmentRequest{ClientID: "c1", Date: "2026-10-19", Start: "9h", End: "10:00"},
			setup:   func(m *MockStore) {},
			wantErr: ErrInvalidTime,
		},
		{
			name:    "end before start",
			req:     models.AppointmentRequest{ClientID: "c1", Date: "2026-10-19", Start: "11:00", End: "10:00"},
			setup:   func(m *MockStore) {},
			wantErr: ErrInvalidRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			tt.setup(store)

			appt, err := NewService(store).Book(context.Background(), "p1", tt.req)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, appt)
			} else {
				require.NoError(t, err)
				assert.Equal(t, int64(2), appt.ID)
				assert.Equal(t, "p1", appt.ProviderID)
				assert.Equal(t, day, appt.Date)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestBookStoreFailure(t *testing.T) {
	store := new(MockStore)
	store.On("ListAppointments", mock.Anything, "p1", day).Return(nil, errors.New("connection reset"))

	_, err := NewService(store).Book(context.Background(), "p1",
		models.AppointmentRequest{ClientID: "c1", Date: "2026-10-19", Start: "9:00", End: "10:00"})
	assert.Error(t, err)
	store.AssertNotCalled(t, "InsertAppointment", mock.Anything, mock.Anything)
}

func TestDay(t *testing.T) {
	store := new(MockStore)
	store.On("ListAppointments", mock.Anything, "p1", day).Return(nil, nil)

	appts, err := NewService(store).Day(context.Background(), "p1", "2026-10-19")
	require.NoError(t, err)
	assert.NotNil(t, appts)
	assert.Empty(t, appts)

	_, err = NewService(store).Day(context.Background(), "p1", "amanhã")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCancel(t *testing.T) {
	store := new(MockStore)
	store.On("DeleteAppointment", mock.Anything, "p1", int64(3)).Return(nil)
	store.On("DeleteAppointment", mock.Anything, "p1", int64(4)).Return(database.ErrAppointmentNotFound)

	svc := NewService(store)
	assert.NoError(t, svc.Cancel(context.Background(), "p1", 3))
	assert.ErrorIs(t, svc.Cancel(context.Background(), "p1", 4), database.ErrAppointmentNotFound)
}
