package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/convites-app/backend/internal/auth"
	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// UserRole returns the role the JWT middleware stored, or "" when unauthenticated.
func UserRole(c *gin.Context) models.Role {
	role, _ := c.Get(ContextUserRole)
	r, _ := role.(models.Role)
	return r
}

// BearerToken extracts the token from the Authorization header, falling back to
// the token query parameter for browser WebSocket clients that cannot set headers.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		t := c.Query("token")
		return t, t != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			response.Unauthorized(c, "missing or invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
