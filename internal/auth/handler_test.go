package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/convites-app/backend/internal/models"
)

type memUsers struct {
	byEmail map[string]*models.User
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) Create(_ context.Context, email, hash, fullName string, role models.Role) (*models.User, error) {
	email = strings.ToLower(email)
	if _, ok := m.byEmail[email]; ok {
		return nil, ErrEmailTaken
	}
	u := &models.User{ID: uuid.New(), Email: email, Password: hash, FullName: fullName, Role: role, CreatedAt: time.Now()}
	m.byEmail[email] = u
	return u, nil
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(&memUsers{byEmail: map[string]*models.User{}}, NewJWTService("secret", 1), zap.NewNop())
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r
}

func post(r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	r := newAuthRouter()
	reg := map[string]string{"email": "Ana@Example.com", "password": "segredo123", "full_name": "Ana"}

	w := post(r, "/auth/register", reg)
	require.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.Token)
	assert.Equal(t, models.RoleOrganizer, body.Data.User.Role)

	w = post(r, "/auth/register", reg)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(r, "/auth/login", map[string]string{"email": "ana@example.com", "password": "segredo123"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = post(r, "/auth/login", map[string]string{"email": "ana@example.com", "password": "errada"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/auth/login", map[string]string{"email": "ninguem@example.com", "password": "segredo123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	r := newAuthRouter()
	tests := []struct {
		name string
		body map[string]string
	}{
		{name: "short password", body: map[string]string{"email": "a@b.com", "password": "123", "full_name": "A"}},
		{name: "bad email", body: map[string]string{"email": "nope", "password": "segredo123", "full_name": "A"}},
		{name: "blank name", body: map[string]string{"email": "a@b.com", "password": "segredo123", "full_name": "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, post(r, "/auth/register", tt.body).Code)
		})
	}
}
