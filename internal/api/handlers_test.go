package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/encurtaweb/encurtador/internal/api"
	"github.com/encurtaweb/encurtador/internal/cache"
	"github.com/encurtaweb/encurtador/internal/models"
	"github.com/encurtaweb/encurtador/internal/queue"
	"github.com/encurtaweb/encurtador/internal/repository"
	"github.com/encurtaweb/encurtador/internal/services"
)

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []queue.SyncClicksPayload
}

func (e *recordingEnqueuer) EnqueueSync(ctx context.Context, p queue.SyncClicksPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, p)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *recordingEnqueuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Link{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	linkCache := cache.NewLinkCache(client, 0, 0, zap.NewNop())

	enqueuer := &recordingEnqueuer{}
	svc := services.NewLinkService(repository.NewLinkRepository(db), linkCache, enqueuer, nil, zap.NewNop())

	router := gin.New()
	api.SetupRoutes(router, svc, zap.NewNop())
	return router, enqueuer
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createLink(t *testing.T, router *gin.Engine, body map[string]any) map[string]any {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/links", body)
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateLink(t *testing.T) {
	router, _ := newTestRouter(t)

	data := createLink(t, router, map[string]any{"destination": "https://google.com"})
	assert.Equal(t, "https://google.com", data["destination"])
	assert.Equal(t, float64(0), data["clicks"])
	assert.Regexp(t, `^[a-zA-Z0-9_-]{8}$`, data["code"])
}

func TestCreateLink_SchemaValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing destination", map[string]any{}},
		{"max clicks below one", map[string]any{"destination": "https://example.com", "maxClicks": 0}},
		{"alias too long", map[string]any{"destination": "https://example.com", "customAlias": "0123456789012345678901234567890"}},
		{"malformed expiresAt", map[string]any{"destination": "https://example.com", "expiresAt": "tomorrow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/links", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "Request doesn't match the schema")
		})
	}
}

func TestCreateLink_InvalidDestination(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/links", map[string]any{"destination": "example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "URL deve começar com http:// ou https://")
}

func TestCreateLink_DuplicateAlias(t *testing.T) {
	router, _ := newTestRouter(t)

	createLink(t, router, map[string]any{"destination": "https://example.com", "customAlias": "myCode"})

	w := doJSON(t, router, http.MethodPost, "/api/links", map[string]any{
		"destination": "https://other.example",
		"customAlias": "myCode",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Código customizado já utilizado")
}

func TestCreateLink_ExpirationInPast(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/links", map[string]any{
		"destination": "https://google.com",
		"expiresAt":   "2000-01-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Data de expiração deve ser no futuro")
}

func TestRedirect(t *testing.T) {
	router, enqueuer := newTestRouter(t)

	data := createLink(t, router, map[string]any{"destination": "https://google.com"})
	code := data["code"].(string)

	w := doJSON(t, router, http.MethodGet, "/"+code, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://google.com", w.Header().Get("Location"))

	enqueuer.mu.Lock()
	defer enqueuer.mu.Unlock()
	require.Len(t, enqueuer.jobs, 1)
	assert.Equal(t, code, enqueuer.jobs[0].Code)
	assert.Equal(t, int64(1), enqueuer.jobs[0].Clicks)
}

func TestRedirect_UnknownCode(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Código não encontrado")
}

func TestRedirect_InvalidCode(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/not!valid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Request doesn't match the schema")
}

func TestRedirect_QuotaReached(t *testing.T) {
	router, _ := newTestRouter(t)

	data := createLink(t, router, map[string]any{
		"destination": "https://example.com",
		"maxClicks":   1,
	})
	code := data["code"].(string)

	w := doJSON(t, router, http.MethodGet, "/"+code, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)

	w = doJSON(t, router, http.MethodGet, "/"+code, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Link curto alcançou o máximo de cliques")
}

func TestRedirect_Expired(t *testing.T) {
	router, _ := newTestRouter(t)

	// Expired links are refused at resolve time; an expiry far in the
	// future must not interfere with the redirect.
	data := createLink(t, router, map[string]any{
		"destination": "https://example.com",
		"expiresAt":   "2100-01-01T00:00:00Z",
	})
	code := data["code"].(string)

	w := doJSON(t, router, http.MethodGet, "/"+code, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code, fmt.Sprintf("link expiring in 2100 must still redirect, body: %s", w.Body.String()))
}
