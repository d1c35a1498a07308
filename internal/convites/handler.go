package convites

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convites-app/backend/internal/events"
	"github.com/convites-app/backend/internal/importer"
	"github.com/convites-app/backend/internal/middleware"
	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/metrics"
	"github.com/convites-app/backend/pkg/response"
)

// Live feed event names.
const (
	EventConviteCreated = "convite_created"
	EventConviteUpdated = "convite_updated"
	EventConviteSent    = "convite_sent"
)

// Store is the persistence the convite handler needs.
type Store interface {
	importer.ExistingPhoneFinder
	Create(ctx context.Context, c *models.Convite) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Convite, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, status models.ConviteStatus) ([]models.Convite, error)
	Stats(ctx context.Context, eventID uuid.UUID) (*models.ConviteStats, error)
	Respond(ctx context.Context, id uuid.UUID, status models.ConviteStatus, resposta *string) (*models.Convite, error)
	ListUnsentIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

// Notifier pushes a message to the live feed of an event.
type Notifier interface {
	Publish(eventID uuid.UUID, event string, payload interface{})
}

// Enqueuer schedules invitation delivery.
type Enqueuer interface {
	EnqueueInvite(ctx context.Context, conviteID, eventID uuid.UUID) error
}

// AddRequest is the body for POST /events/:id/convites.
type AddRequest struct {
	NomeConvidado string `json:"nome_convidado"`
	Telefone      string `json:"telefone"`
	Observacao    string `json:"observacao"`
}

// RespondRequest is the body for POST /public/convites/:convite_id/resposta.
type RespondRequest struct {
	Status   models.ConviteStatus `json:"status" binding:"required"`
	Resposta string               `json:"resposta"`
}

// PublicConvite is what a guest sees when opening the invitation link.
type PublicConvite struct {
	ID            uuid.UUID            `json:"id"`
	NomeConvidado string               `json:"nome_convidado"`
	Status        models.ConviteStatus `json:"status"`
	Resposta      *string              `json:"resposta,omitempty"`
	Event         events.PublicEvent   `json:"event"`
}

// Handler handles convite HTTP endpoints.
type Handler struct {
	store    Store
	events   events.Getter
	notifier Notifier
	queue    Enqueuer
	logger   *zap.Logger
}

// NewHandler creates a convite handler.
func NewHandler(store Store, eventGetter events.Getter, notifier Notifier, queue Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, events: eventGetter, notifier: notifier, queue: queue, logger: logger}
}

// Add handles POST /events/:id/convites: one guest typed in by hand.
func (h *Handler) Add(c *gin.Context) {
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e := events.EventFrom(c)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	cand, failure := importer.ValidateRow(importer.RawRow{
		Row:           1,
		NomeConvidado: req.NomeConvidado,
		Telefone:      req.Telefone,
		Observacao:    req.Observacao,
	})
	if failure != nil {
		response.BadRequest(c, failure.Error)
		return
	}
	err := importer.CheckStorageDuplicates(c.Request.Context(), h.store, e.ID, []importer.Candidate{cand})
	var dup *importer.DuplicateError
	if errors.As(err, &dup) {
		response.Fail(c, http.StatusConflict, string(dup.Kind), dup.Error(), gin.H{"duplicates": dup.Phones})
		return
	}
	if err != nil {
		h.logger.Error("duplicate lookup", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Internal(c, "falha ao verificar duplicidade")
		return
	}

	conv := &models.Convite{
		EventID:       e.ID,
		NomeConvidado: cand.Name,
		Telefone:      cand.Phone,
		Observacao:    cand.Note,
		Status:        models.ConvitePending,
		ResponsavelID: &userID,
	}
	if err := h.store.Create(c.Request.Context(), conv); err != nil {
		if errors.Is(err, ErrDuplicatePhone) {
			dup := &importer.DuplicateError{Kind: importer.DuplicateInStorage, Phones: []string{cand.Phone}}
			response.Fail(c, http.StatusConflict, string(dup.Kind), dup.Error(), gin.H{"duplicates": dup.Phones})
			return
		}
		if errors.Is(err, ErrMissingReference) {
			response.NotFound(c, "evento não encontrado")
			return
		}
		h.logger.Error("create convite", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Internal(c, "falha ao criar convite")
		return
	}
	h.notifier.Publish(e.ID, EventConviteCreated, conv)
	response.Created(c, conv)
}

// List handles GET /events/:id/convites?status=.
func (h *Handler) List(c *gin.Context) {
	status := models.ConviteStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		response.BadRequest(c, "invalid status")
		return
	}
	e := events.EventFrom(c)
	list, err := h.store.ListByEvent(c.Request.Context(), e.ID, status)
	if err != nil {
		h.logger.Error("list convites", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Internal(c, "failed to list convites")
		return
	}
	response.OK(c, list)
}

// Stats handles GET /events/:id/convites/stats.
func (h *Handler) Stats(c *gin.Context) {
	e := events.EventFrom(c)
	stats, err := h.store.Stats(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("convite stats", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load stats")
		return
	}
	response.OK(c, stats)
}

// Resend handles POST /events/:id/convites/:convite_id/send.
func (h *Handler) Resend(c *gin.Context) {
	e := events.EventFrom(c)
	conv, ok := h.loadConvite(c)
	if !ok {
		return
	}
	if conv.EventID != e.ID {
		response.NotFound(c, "convite not found")
		return
	}
	if err := h.queue.EnqueueInvite(c.Request.Context(), conv.ID, e.ID); err != nil {
		h.logger.Error("enqueue invite", zap.String("convite_id", conv.ID.String()), zap.Error(err))
		response.Internal(c, "failed to schedule invite")
		return
	}
	c.JSON(http.StatusAccepted, response.Body{Success: true, Data: gin.H{"queued": 1}})
}

// SendAll handles POST /events/:id/convites/send: every convite never delivered.
func (h *Handler) SendAll(c *gin.Context) {
	e := events.EventFrom(c)
	ids, err := h.store.ListUnsentIDs(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("list unsent", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Internal(c, "failed to list convites")
		return
	}
	queued := 0
	for _, id := range ids {
		if err := h.queue.EnqueueInvite(c.Request.Context(), id, e.ID); err != nil {
			h.logger.Error("enqueue invite", zap.String("convite_id", id.String()), zap.Error(err))
			response.Fail(c, http.StatusInternalServerError, "", "failed to schedule invites", gin.H{"queued": queued})
			return
		}
		queued++
	}
	c.JSON(http.StatusAccepted, response.Body{Success: true, Data: gin.H{"queued": queued}})
}

// GetPublic handles GET /public/convites/:convite_id. No auth: the id is the guest's link.
func (h *Handler) GetPublic(c *gin.Context) {
	conv, ok := h.loadConvite(c)
	if !ok {
		return
	}
	e, err := h.events.GetByID(c.Request.Context(), conv.EventID)
	if err != nil {
		h.logger.Error("load convite event", zap.String("convite_id", conv.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, PublicConvite{
		ID:            conv.ID,
		NomeConvidado: conv.NomeConvidado,
		Status:        conv.Status,
		Resposta:      conv.Resposta,
		Event: events.PublicEvent{
			Name:        e.Name,
			Slug:        e.Slug,
			Description: e.Description,
			Location:    e.Location,
			StartsAt:    e.StartsAt,
		},
	})
}

// Respond handles POST /public/convites/:convite_id/resposta.
func (h *Handler) Respond(c *gin.Context) {
	id, err := uuid.Parse(c.Param("convite_id"))
	if err != nil {
		response.BadRequest(c, "invalid convite id")
		return
	}
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !req.Status.IsResponse() {
		response.BadRequest(c, "status must be confirmed, declined or wants_to_talk")
		return
	}
	var resposta *string
	if s := strings.TrimSpace(req.Resposta); s != "" {
		resposta = &s
	}

	conv, err := h.store.Respond(c.Request.Context(), id, req.Status, resposta)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "convite not found")
		return
	}
	if err != nil {
		h.logger.Error("respond convite", zap.String("convite_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to save response")
		return
	}
	metrics.RSVPResponses.WithLabelValues(string(conv.Status)).Inc()
	h.notifier.Publish(conv.EventID, EventConviteUpdated, conv)
	h.logger.Info("rsvp received",
		zap.String("convite_id", conv.ID.String()),
		zap.String("status", string(conv.Status)),
	)
	response.OK(c, conv)
}

func (h *Handler) loadConvite(c *gin.Context) (*models.Convite, bool) {
	id, err := uuid.Parse(c.Param("convite_id"))
	if err != nil {
		response.BadRequest(c, "invalid convite id")
		return nil, false
	}
	conv, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "convite not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("load convite", zap.String("convite_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to load convite")
		return nil, false
	}
	return conv, true
}
