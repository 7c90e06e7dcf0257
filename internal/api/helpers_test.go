package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/consertja/consertja/internal/auth"
	"github.com/consertja/consertja/internal/chat"
	"github.com/consertja/consertja/internal/directory"
	"github.com/consertja/consertja/internal/models"
	"github.com/consertja/consertja/internal/schedule"
)

const testSecret = "test-secret-key-for-api-tests"

var (
	client   = models.Session{UserID: "c1", Role: models.RoleClient}
	provider = models.Session{UserID: "p1", Role: models.RoleProvider}
)

// setupTestRouter mounts every route over a MockDB
func setupTestRouter(t *testing.T) (*gin.Engine, *MockDB) {
	gin.SetMode(gin.TestMode)
	auth.InitJWTKey([]byte(testSecret))

	mockDB := new(MockDB)
	router := gin.New()
	RegisterRoutes(router, Handlers{
		Auth:      NewAuthHandler(mockDB),
		Messages:  NewMessageHandler(chat.NewService(mockDB, nil)),
		Schedule:  NewScheduleHandler(schedule.NewService(mockDB)),
		Directory: NewDirectoryHandler(directory.NewService(mockDB)),
	})

	return router, mockDB
}

func tokenFor(t *testing.T, s models.Session) string {
	token, _, err := auth.GenerateToken(s)
	require.NoError(t, err)
	return token
}

// doRequest serves one request as the given session; an empty session
// sends no Authorization header
func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, as models.Session) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if as.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, as))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
