package importlogs

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/pkg/response"
)

// Store reads the audit trail of an event.
type Store interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.ImportLog, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ImportLog, error)
}

// FileLinker turns an archived upload key into a temporary download link.
type FileLinker interface {
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Handler handles import log HTTP endpoints.
type Handler struct {
	repo   Store
	files  FileLinker
	logger *zap.Logger
}

// NewHandler creates an import logs handler. files may be nil when archiving is off.
func NewHandler(repo Store, files FileLinker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, files: files, logger: logger}
}

// ListByEvent handles GET /events/:id/imports.
// Call after RequireEventOwner so access is already validated.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	logs, err := h.repo.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list import logs failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load import history")
		return
	}
	response.OK(c, logs)
}

// FileURL handles GET /events/:id/imports/:import_id/file: a short-lived link to the original spreadsheet.
func (h *Handler) FileURL(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	importID, err := uuid.Parse(c.Param("import_id"))
	if err != nil {
		response.BadRequest(c, "invalid import id")
		return
	}
	l, err := h.repo.GetByID(c.Request.Context(), importID)
	if errors.Is(err, ErrNotFound) || (err == nil && l.EventID != eventID) {
		response.NotFound(c, "import not found")
		return
	}
	if err != nil {
		h.logger.Error("load import log failed", zap.Error(err), zap.String("import_id", importID.String()))
		response.Internal(c, "failed to load import")
		return
	}
	if l.ArquivoKey == "" || h.files == nil {
		response.NotFound(c, "no archived file for this import")
		return
	}
	url, err := h.files.DownloadURL(c.Request.Context(), l.ArquivoKey)
	if err != nil {
		h.logger.Error("presign import file failed", zap.Error(err), zap.String("key", l.ArquivoKey))
		response.Internal(c, "failed to create download link")
		return
	}
	response.OK(c, gin.H{"url": url})
}
