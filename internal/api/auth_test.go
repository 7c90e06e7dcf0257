package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/consertja/consertja/internal/auth"
	"github.com/consertja/consertja/internal/database"
	"github.com/consertja/consertja/internal/models"
)

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("senha123")
	require.NoError(t, err)

	providerAccess := &models.Access{Login: "p1", CPF: "12345678900", PasswordHash: hash, Type: "Prestador de serviço"}
	clientAccess := &models.Access{Login: "c1", CPF: "98765432100", PasswordHash: hash, Type: "cliente"}
	oddAccess := &models.Access{Login: "x1", CPF: "11111111111", PasswordHash: hash, Type: "admin"}

	tests := []struct {
		name       string
		input      models.LoginRequest
		setup      func(*MockDB)
		wantStatus int
		wantRole   models.Role
	}{
		{
			name:  "provider login",
			input: models.LoginRequest{CPF: "12345678900", Password: "senha123"},
			setup: func(m *MockDB) {
				m.On("GetAccessByCPF", mock.Anything, "12345678900").Return(providerAccess, nil)
			},
			wantStatus: http.StatusOK,
			wantRole:   models.RoleProvider,
		},
		{
			name:  "formatted CPF retries with digits",
			input: models.LoginRequest{CPF: "987.654.321-00", Password: "senha123"},
			setup: func(m *MockDB) {
				m.On("GetAccessByCPF", mock.Anything, "987.654.321-00").Return(nil, database.ErrAccessNotFound)
				m.On("GetAccessByCPF", mock.Anything, "98765432100").Return(clientAccess, nil)
			},
			wantStatus: http.StatusOK,
			wantRole:   models.RoleClient,
		},
		{
			name:  "wrong password",
			input: models.LoginRequest{CPF: "12345678900", Password: "errada"},
			setup: func(m *MockDB) {
				m.On("GetAccessByCPF", mock.Anything, "12345678900").Return(providerAccess, nil)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:  "unknown CPF",
			input: models.LoginRequest{CPF: "00000000000", Password: "senha123"},
			setup: func(m *MockDB) {
				m.On("GetAccessByCPF", mock.Anything, "00000000000").Return(nil, database.ErrAccessNotFound)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:  "unknown user type",
			input: models.LoginRequest{CPF: "11111111111", Password: "senha123"},
			setup: func(m *MockDB) {
				m.On("GetAccessByCPF", mock.Anything, "11111111111").Return(oddAccess, nil)
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:  "database error",
			input: models.LoginRequest{CPF: "12345678900", Password: "senha123"},
			setup: func(m *MockDB) {
				m.On("GetAccessByCPF", mock.Anything, "12345678900").Return(nil, errors.New("connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "missing password",
			input:      models.LoginRequest{CPF: "12345678900"},
			setup:      func(m *MockDB) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, mockDB := setupTestRouter(t)
			tt.setup(mockDB)

			w := doRequest(t, router, http.MethodPost, "/api/auth/login", tt.input, models.Session{})

			assert.Equal(t, tt.wantStatus, w.Code)
			mockDB.AssertExpectations(t)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var response struct {
				Token  string      `json:"token"`
				UserID string      `json:"user_id"`
				Role   models.Role `json:"role"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.NotEmpty(t, response.Token)
			assert.Equal(t, tt.wantRole, response.Role)

			claims, err := auth.ValidateToken(response.Token)
			require.NoError(t, err)
			assert.Equal(t, response.UserID, claims.UserID)
			assert.Equal(t, tt.wantRole, claims.Role)
		})
	}
}

func TestGetMe(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/auth/me", nil, provider)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, provider, response)

	w = doRequest(t, router, http.MethodGet, "/api/auth/me", nil, models.Session{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
