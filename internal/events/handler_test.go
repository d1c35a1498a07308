package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/convites-app/backend/internal/middleware"
	"github.com/convites-app/backend/internal/models"
)

type fakeStore struct {
	events  map[uuid.UUID]*models.Event
	slugs   map[string]int
	failGet error
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: map[uuid.UUID]*models.Event{}, slugs: map[string]int{}}
}

func (f *fakeStore) Create(_ context.Context, e *models.Event) error {
	base := Slugify(e.Name)
	f.slugs[base]++
	e.ID = uuid.New()
	e.Slug = withSuffix(base, f.slugs[base])
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	e, ok := f.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) GetBySlug(_ context.Context, slug string) (*models.Event, error) {
	for _, e := range f.events {
		if e.Slug == slug {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ListByOwner(_ context.Context, owner uuid.UUID) ([]models.Event, error) {
	list := []models.Event{}
	for _, e := range f.events {
		if e.OwnerID == owner {
			list = append(list, *e)
		}
	}
	return list, nil
}

func (f *fakeStore) Update(_ context.Context, e *models.Event) error {
	if _, ok := f.events[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func newRouter(store *fakeStore, userID uuid.UUID, role models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, zap.NewNop())
	r := gin.New()
	auth := func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserRole, role)
		c.Next()
	}
	r.GET("/public/events/:slug", h.GetPublic)
	g := r.Group("/events", auth)
	g.POST("", h.Create)
	g.GET("", h.List)
	owned := g.Group("/:id", RequireEventOwner(store))
	owned.GET("", h.GetByID)
	owned.PATCH("", h.Update)
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestCreateAssignsUniqueSlugs(t *testing.T) {
	store := newFakeStore()
	r := newRouter(store, uuid.New(), "organizer")

	body := map[string]string{"name": "Casamento Ana & Bia", "starts_at": "2026-12-05T18:00:00Z"}
	first := do(r, http.MethodPost, "/events", body)
	second := do(r, http.MethodPost, "/events", body)
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)

	var a, b models.Event
	require.NoError(t, json.Unmarshal(decode(t, first).Data, &a))
	require.NoError(t, json.Unmarshal(decode(t, second).Data, &b))
	assert.Equal(t, "casamento-ana-bia", a.Slug)
	assert.Equal(t, "casamento-ana-bia-2", b.Slug)
}

func TestCreateRejectsBadDate(t *testing.T) {
	r := newRouter(newFakeStore(), uuid.New(), "organizer")
	w := do(r, http.MethodPost, "/events", map[string]string{"name": "Festa", "starts_at": "amanhã"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOwnerMiddleware(t *testing.T) {
	owner := uuid.New()
	store := newFakeStore()
	e := &models.Event{OwnerID: owner, Name: "Festa"}
	require.NoError(t, store.Create(context.Background(), e))

	tests := []struct {
		name   string
		user   uuid.UUID
		role   models.Role
		path   string
		status int
	}{
		{name: "owner", user: owner, role: models.RoleOrganizer, path: "/events/" + e.ID.String(), status: http.StatusOK},
		{name: "stranger", user: uuid.New(), role: models.RoleOrganizer, path: "/events/" + e.ID.String(), status: http.StatusForbidden},
		{name: "admin", user: uuid.New(), role: models.RoleAdmin, path: "/events/" + e.ID.String(), status: http.StatusOK},
		{name: "unknown event", user: owner, role: models.RoleOrganizer, path: "/events/" + uuid.NewString(), status: http.StatusNotFound},
		{name: "bad id", user: owner, role: models.RoleOrganizer, path: "/events/xyz", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newRouter(store, tt.user, tt.role), http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestOwnerMiddlewareStorageError(t *testing.T) {
	store := newFakeStore()
	store.failGet = errors.New("connection reset")
	w := do(newRouter(store, uuid.New(), "organizer"), http.MethodGet, "/events/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUpdateKeepsSlug(t *testing.T) {
	owner := uuid.New()
	store := newFakeStore()
	e := &models.Event{OwnerID: owner, Name: "Festa Junina"}
	require.NoError(t, store.Create(context.Background(), e))

	r := newRouter(store, owner, "organizer")
	w := do(r, http.MethodPatch, "/events/"+e.ID.String(), map[string]string{"name": "Arraial", "location": "Sítio"})
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Event
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, "Arraial", got.Name)
	assert.Equal(t, "Sítio", got.Location)
	assert.Equal(t, "festa-junina", got.Slug)

	w = do(r, http.MethodPatch, "/events/"+e.ID.String(), map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPublic(t *testing.T) {
	store := newFakeStore()
	e := &models.Event{OwnerID: uuid.New(), Name: "Chá de Bebê", Location: "Salão"}
	require.NoError(t, store.Create(context.Background(), e))
	r := newRouter(store, uuid.New(), "organizer")

	w := do(r, http.MethodGet, "/public/events/cha-de-bebe", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pub map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &pub))
	assert.Equal(t, "Chá de Bebê", pub["name"])
	assert.NotContains(t, pub, "owner_id")

	w = do(r, http.MethodGet, "/public/events/nao-existe", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOnlyOwnEvents(t *testing.T) {
	owner := uuid.New()
	store := newFakeStore()
	require.NoError(t, store.Create(context.Background(), &models.Event{OwnerID: owner, Name: "A"}))
	require.NoError(t, store.Create(context.Background(), &models.Event{OwnerID: uuid.New(), Name: "B"}))

	w := do(newRouter(store, owner, "organizer"), http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Event
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Name)
}

func TestNewHandlerNilLogger(t *testing.T) {
	assert.NotNil(t, NewHandler(newFakeStore(), nil).logger)
}
