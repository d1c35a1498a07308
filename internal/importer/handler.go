package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convites-app/backend/internal/middleware"
	"github.com/convites-app/backend/pkg/response"
)

// DefaultMaxUploadBytes bounds spreadsheet uploads when no limit is configured.
const DefaultMaxUploadBytes = 5 << 20

// Error tipos for structural failures of an upload.
const (
	TipoMalformedFile  = "arquivo_invalido"
	TipoMissingColumns = "colunas_obrigatorias_ausentes"
)

// Cell accepts a JSON string, number or null, so sheets parsed in the browser
// can send numeric phone cells as-is.
type Cell string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Cell) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Cell(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Cell(n.String())
	return nil
}

// RowInput is one guest row sent as JSON.
type RowInput struct {
	NomeConvidado Cell `json:"nome_convidado"`
	Telefone      Cell `json:"telefone"`
	Observacao    Cell `json:"observacao"`
}

// RowsRequest is the body for POST /events/:id/import/rows.
type RowsRequest struct {
	Rows []RowInput `json:"rows"`
}

// EventImportFinished is published on the live feed after an import attempt ran.
const EventImportFinished = "import_finished"

// Notifier pushes a message to the live feed of an event.
type Notifier interface {
	Publish(eventID uuid.UUID, event string, payload interface{})
}

// Handler exposes the import pipeline over HTTP.
type Handler struct {
	pipeline  *Pipeline
	maxUpload int64
	notifier  Notifier
	logger    *zap.Logger
}

// NewHandler creates an import handler.
func NewHandler(pipeline *Pipeline, maxUpload int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{pipeline: pipeline, maxUpload: maxUpload, logger: logger}
}

// SetNotifier makes finished imports show up on the event's live dashboard.
func (h *Handler) SetNotifier(n Notifier) {
	h.notifier = n
}

func (h *Handler) finish(c *gin.Context, eventID uuid.UUID, res *Result) {
	if h.notifier != nil {
		h.notifier.Publish(eventID, EventImportFinished, res)
	}
	response.OK(c, res)
}

// Import handles POST /events/:id/import (multipart field "file").
func (h *Handler) Import(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}
	res, err := h.pipeline.ImportFile(c.Request.Context(), FileRequest{
		EventID:  eventID,
		UserID:   userID,
		Filename: safeFilename(filename),
		Data:     data,
	})
	if err != nil {
		h.writeError(c, eventID, err)
		return
	}
	h.finish(c, eventID, res)
}

// Preview handles POST /events/:id/import/preview. Nothing is written.
func (h *Handler) Preview(c *gin.Context) {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	_, data, ok := h.readUpload(c)
	if !ok {
		return
	}
	out, err := h.pipeline.PreviewFile(data)
	if err != nil {
		h.writeError(c, uuid.Nil, err)
		return
	}
	response.OK(c, out)
}

// ImportRows handles POST /events/:id/import/rows for sheets decoded client-side.
func (h *Handler) ImportRows(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req RowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rows := make([]RawRow, len(req.Rows))
	for i, in := range req.Rows {
		rows[i] = RawRow{
			Row:           i + 1,
			NomeConvidado: string(in.NomeConvidado),
			Telefone:      string(in.Telefone),
			Observacao:    string(in.Observacao),
		}
	}
	res, err := h.pipeline.Run(c.Request.Context(), Request{EventID: eventID, UserID: userID, Rows: rows})
	if err != nil {
		h.writeError(c, eventID, err)
		return
	}
	h.finish(c, eventID, res)
}

func (h *Handler) readUpload(c *gin.Context) (string, []byte, bool) {
	if c.Request.ContentLength > h.maxUpload {
		response.TooLarge(c, "arquivo excede o tamanho máximo permitido")
		return "", nil, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(c, "arquivo excede o tamanho máximo permitido")
			return "", nil, false
		}
		response.BadRequest(c, "arquivo obrigatório no campo 'file'")
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "não foi possível abrir o arquivo enviado")
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.BadRequest(c, "não foi possível ler o arquivo enviado")
		return "", nil, false
	}
	return fh.Filename, data, true
}

func (h *Handler) writeError(c *gin.Context, eventID uuid.UUID, err error) {
	var (
		malformed *MalformedFileError
		missing   *MissingColumnsError
		dup       *DuplicateError
	)
	switch {
	case errors.As(err, &dup):
		response.Fail(c, http.StatusConflict, string(dup.Kind), dup.Error(), gin.H{"duplicates": dup.Phones})
	case errors.As(err, &missing):
		response.Fail(c, http.StatusBadRequest, TipoMissingColumns, missing.Error(), gin.H{"columns": missing.Columns})
	case errors.As(err, &malformed):
		response.Fail(c, http.StatusBadRequest, TipoMalformedFile, malformed.Error(), nil)
	default:
		h.logger.Error("import failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "falha ao importar convidados")
	}
}

// safeFilename keeps only the base name of an uploaded file.
func safeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "upload.xlsx"
	}
	return name
}
