package events

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/convites-app/backend/internal/middleware"
	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/response"
)

// ContextEvent is the context key for the event loaded by RequireEventOwner.
const ContextEvent = "event"

// Getter loads a single event.
type Getter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// RequireEventOwner loads the event named by :id and lets only its owner (or an admin) through.
// Call after JWT. The loaded event is stored under ContextEvent.
func RequireEventOwner(events Getter) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		e, err := events.GetByID(c.Request.Context(), eventID)
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			c.Abort()
			return
		}
		if err != nil {
			response.Internal(c, "failed to load event")
			c.Abort()
			return
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		if e.OwnerID != userID && middleware.UserRole(c) != models.RoleAdmin {
			response.Forbidden(c, "not the owner of this event")
			c.Abort()
			return
		}
		c.Set(ContextEvent, e)
		c.Next()
	}
}

// EventFrom returns the event stored by RequireEventOwner.
func EventFrom(c *gin.Context) *models.Event {
	return c.MustGet(ContextEvent).(*models.Event)
}
