package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/api"
	"github.com/phrazzld/scry-forge/internal/config"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	requests int
}

func (s *stubService) Request(_ context.Context, _ *domain.GenerationRequest) (*generation.Ticket, error) {
	s.requests++
	return &generation.Ticket{JobID: uuid.New(), ArtifactID: uuid.New()}, nil
}

func (s *stubService) Status(_ context.Context, _ uuid.UUID) (*domain.Artifact, error) {
	return nil, generation.ErrArtifactNotFound
}

func (s *stubService) Invalidate(_ context.Context, _ string) (int, error) {
	return 0, nil
}

type stubSettings struct{}

func (stubSettings) Get(_ context.Context, _ string, _ any) (bool, error) { return false, nil }
func (stubSettings) Put(_ context.Context, _ string, _ any) error        { return nil }

func newTestApp(adminToken string, health map[string]api.Pinger) (*application, *stubService) {
	svc := &stubService{}
	return &application{
		config:   &config.Config{Server: config.ServerConfig{AdminToken: adminToken}},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		service:  svc,
		settings: stubSettings{},
		health:   health,
	}, svc
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_GenerationRoutes(t *testing.T) {
	app, svc := newTestApp("", nil)
	router := app.setupRouter()

	rec := do(t, router, http.MethodPost, "/api/generations",
		`{"kind":"quiz","topic":"photosynthesis","target_count":5}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, svc.requests)

	rec = do(t, router, http.MethodGet, "/api/generations/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/generations/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AdminRoutes(t *testing.T) {
	t.Run("not mounted without a token", func(t *testing.T) {
		app, _ := newTestApp("", nil)
		rec := do(t, app.setupRouter(), http.MethodGet, "/api/admin/routing-overrides", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("requires the bearer token", func(t *testing.T) {
		app, _ := newTestApp("s3cret", nil)
		router := app.setupRouter()

		rec := do(t, router, http.MethodGet, "/api/admin/routing-overrides", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = do(t, router, http.MethodGet, "/api/admin/routing-overrides", "",
			map[string]string{"Authorization": "Bearer wrong"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(t, router, http.MethodGet, "/api/admin/routing-overrides", "",
			map[string]string{"Authorization": "Bearer s3cret"})
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = do(t, router, http.MethodPut, "/api/admin/routing-overrides",
			`{"tasks":{"quiz":"openai"}}`,
			map[string]string{"Authorization": "Bearer s3cret", "Content-Type": "application/json"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRouter_Health(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	app, _ := newTestApp("", map[string]api.Pinger{"database": healthy, "redis": healthy})
	rec := do(t, app.setupRouter(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	app, _ = newTestApp("", map[string]api.Pinger{"database": healthy, "redis": down})
	rec = do(t, app.setupRouter(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

func TestRouter_Metrics(t *testing.T) {
	app, _ := newTestApp("", nil)
	router := app.setupRouter()

	// One request so the HTTP histogram has a sample.
	do(t, router, http.MethodGet, "/api/generations/"+uuid.NewString(), "", nil)

	rec := do(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "scry_http_request_duration_seconds")
	assert.Contains(t, body, `route="/api/generations/{id}"`)
}
