package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convites-app/backend/internal/middleware"
	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/response"
)

// Store is the persistence the event handler needs.
type Store interface {
	Getter
	Create(ctx context.Context, e *models.Event) error
	GetBySlug(ctx context.Context, slug string) (*models.Event, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error)
	Update(ctx context.Context, e *models.Event) error
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartsAt    string `json:"starts_at" binding:"required"`
}

// UpdateRequest is the body for PATCH /events/:id. Omitted fields are left as they are.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	StartsAt    *string `json:"starts_at"`
}

// PublicEvent is what guests see on the invitation page.
type PublicEvent struct {
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(c, "name is required")
		return
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		response.BadRequest(c, "invalid starts_at")
		return
	}

	e := &models.Event{
		OwnerID:     c.MustGet(middleware.ContextUserID).(uuid.UUID),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    startsAt,
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List handles GET /events: the caller's own events.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.store.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id (behind RequireEventOwner).
func (h *Handler) GetByID(c *gin.Context) {
	response.OK(c, EventFrom(c))
}

// Update handles PATCH /events/:id (behind RequireEventOwner).
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e := *EventFrom(c)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			response.BadRequest(c, "name cannot be empty")
			return
		}
		e.Name = name
	}
	if req.Description != nil {
		e.Description = strings.TrimSpace(*req.Description)
	}
	if req.Location != nil {
		e.Location = strings.TrimSpace(*req.Location)
	}
	if req.StartsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.StartsAt)
		if err != nil {
			response.BadRequest(c, "invalid starts_at")
			return
		}
		e.StartsAt = t
	}
	if err := h.store.Update(c.Request.Context(), &e); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("update event", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, e)
}

// GetPublic handles GET /public/events/:slug. No auth.
func (h *Handler) GetPublic(c *gin.Context) {
	e, err := h.store.GetBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		h.logger.Error("get event by slug", zap.Error(err))
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, PublicEvent{
		Name:        e.Name,
		Slug:        e.Slug,
		Description: e.Description,
		Location:    e.Location,
		StartsAt:    e.StartsAt,
	})
}
