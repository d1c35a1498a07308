package importer

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convites-app/backend/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Tipo    string          `json:"tipo"`
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uuid.New())
		c.Next()
	})
	r.POST("/events/:id/import", h.Import)
	r.POST("/events/:id/import/preview", h.Preview)
	r.POST("/events/:id/import/rows", h.ImportRows)
	return r
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func doUpload(t *testing.T, r *gin.Engine, path string, data []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	body, contentType := multipartBody(t, "lista.xlsx", data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Publish(_ uuid.UUID, event string, _ interface{}) {
	n.events = append(n.events, event)
}

func TestHandlerImport(t *testing.T) {
	store := newFakeStore()
	notifier := &recordingNotifier{}
	h := NewHandler(NewPipeline(store, &fakeAudit{}, nil), 0, nil)
	h.SetNotifier(notifier)
	r := newTestRouter(h)

	data := buildSheet(t, header(),
		[]interface{}{"Ana", "+5511999999999"},
		[]interface{}{"", "11988888888"},
	)
	w, env := doUpload(t, r, "/events/"+uuid.NewString()+"/import", data)

	require.Equal(t, http.StatusOK, w.Code)
	var res Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 1, res.InsertedCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 2, res.Failures[0].Row)
	assert.Equal(t, MsgNameRequired, res.Failures[0].Error)
	assert.Equal(t, []string{EventImportFinished}, notifier.events)
}

func TestHandlerImportMissingColumns(t *testing.T) {
	h := NewHandler(NewPipeline(newFakeStore(), &fakeAudit{}, nil), 0, nil)
	r := newTestRouter(h)

	data := buildSheet(t, []interface{}{"nome", "telefone"}, []interface{}{"Ana", "+5511999999999"})
	w, env := doUpload(t, r, "/events/"+uuid.NewString()+"/import", data)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, TipoMissingColumns, env.Tipo)
	assert.Contains(t, env.Error, "nome_convidado")
	assert.NotContains(t, string(env.Data), "failures")
}

func TestHandlerImportStorageDuplicate(t *testing.T) {
	h := NewHandler(NewPipeline(newFakeStore("+5511999999999"), &fakeAudit{}, nil), 0, nil)
	r := newTestRouter(h)

	data := buildSheet(t, header(), []interface{}{"Ana", "+5511999999999"})
	w, env := doUpload(t, r, "/events/"+uuid.NewString()+"/import", data)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(DuplicateInStorage), env.Tipo)
	var payload struct {
		Duplicates []string `json:"duplicates"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, []string{"+5511999999999"}, payload.Duplicates)
}

func TestHandlerImportTooLarge(t *testing.T) {
	h := NewHandler(NewPipeline(newFakeStore(), &fakeAudit{}, nil), 64, nil)
	r := newTestRouter(h)

	data := buildSheet(t, header(), []interface{}{"Ana", "+5511999999999"})
	w, _ := doUpload(t, r, "/events/"+uuid.NewString()+"/import", data)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandlerPreviewDoesNotWrite(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(NewPipeline(store, &fakeAudit{}, nil), 0, nil)
	r := newTestRouter(h)

	data := buildSheet(t, header(), []interface{}{"Ana", "11988888888"})
	w, env := doUpload(t, r, "/events/"+uuid.NewString()+"/import/preview", data)

	require.Equal(t, http.StatusOK, w.Code)
	var out Preview
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "+5511988888888", out.Candidates[0].Phone)
	assert.Equal(t, 0, store.insertCalls)
}

func TestHandlerImportRows(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(NewPipeline(store, &fakeAudit{}, nil), 0, nil)
	r := newTestRouter(h)

	body := `{"rows":[
		{"nome_convidado":"Ana","telefone":"+5511999999999"},
		{"nome_convidado":"Bia","telefone":11988888888,"observacao":null}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/events/"+uuid.NewString()+"/import/rows", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.inserted, 2)
	assert.Equal(t, "+5511988888888", store.inserted[1].Telefone)
}

func TestHandlerImportRowsBatchDuplicate(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(NewPipeline(store, &fakeAudit{}, nil), 0, nil)
	r := newTestRouter(h)

	body := `{"rows":[
		{"nome_convidado":"Ana","telefone":"+5511999999999"},
		{"nome_convidado":"Bia","telefone":"+5511999999999"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/events/"+uuid.NewString()+"/import/rows", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, string(DuplicateInRequest), env.Tipo)
	assert.Empty(t, store.inserted)
}

func TestHandlerInvalidEventID(t *testing.T) {
	h := NewHandler(NewPipeline(newFakeStore(), &fakeAudit{}, nil), 0, nil)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/events/not-a-uuid/import/rows", bytes.NewBufferString(`{"rows":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "lista.xlsx", safeFilename("../../etc/lista.xlsx"))
	assert.Equal(t, "lista.xlsx", safeFilename(`C:\Users\ana\lista.xlsx`))
	assert.Equal(t, "upload.xlsx", safeFilename(""))
}
