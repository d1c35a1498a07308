package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/convites-app/backend/internal/auth"
	"github.com/convites-app/backend/internal/models"
)

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := auth.NewJWTService("secret", 1)
	userID := uuid.New()
	token, err := svc.Generate(&models.User{ID: userID, Email: "ana@example.com", Role: models.RoleOrganizer})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", JWT(svc), RequireRole(models.RoleOrganizer, models.RoleAdmin), func(c *gin.Context) {
		assert.Equal(t, userID, c.MustGet(ContextUserID))
		c.Status(http.StatusOK)
	})
	r.GET("/admin", JWT(svc), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{name: "valid", path: "/me", header: "Bearer " + token, status: http.StatusOK},
		{name: "missing", path: "/me", status: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/me", header: "Token " + token, status: http.StatusUnauthorized},
		{name: "garbage", path: "/me", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "role denied", path: "/admin", header: "Bearer " + token, status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBearerTokenFromQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)

	token, ok := BearerToken(c)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
}

func TestLoggerSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "given")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "given", w.Header().Get(HeaderRequestID))
}
