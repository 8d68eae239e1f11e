package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/generation"
)

type mockGenerationService struct {
	RequestFn    func(ctx context.Context, req *domain.GenerationRequest) (*generation.Ticket, error)
	StatusFn     func(ctx context.Context, id uuid.UUID) (*domain.Artifact, error)
	InvalidateFn func(ctx context.Context, pattern string) (int, error)
}

func (m *mockGenerationService) Request(ctx context.Context, req *domain.GenerationRequest) (*generation.Ticket, error) {
	return m.RequestFn(ctx, req)
}

func (m *mockGenerationService) Status(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	return m.StatusFn(ctx, id)
}

func (m *mockGenerationService) Invalidate(ctx context.Context, pattern string) (int, error) {
	return m.InvalidateFn(ctx, pattern)
}

type mockSettings struct {
	stored map[string]any
	GetErr error
	PutErr error
}

func (m *mockSettings) Get(_ context.Context, _ string, out any) (bool, error) {
	if m.GetErr != nil {
		return false, m.GetErr
	}
	if m.stored == nil {
		return false, nil
	}
	p := out.(*map[string]any)
	*p = m.stored
	return true, nil
}

func (m *mockSettings) Put(_ context.Context, _ string, value any) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.stored = value.(map[string]any)
	return nil
}

type expirer struct{ calls int }

func (e *expirer) Expire() { e.calls++ }

func newTestRouter(gen *GenerationHandler, admin *AdminHandler) http.Handler {
	r := chi.NewRouter()
	if gen != nil {
		r.Post("/api/generations", gen.Create)
		r.Delete("/api/generations/cache", gen.InvalidateCache)
		r.Get("/api/generations/{id}", gen.Get)
	}
	if admin != nil {
		r.Get("/api/admin/routing-overrides", admin.GetRoutingOverrides)
		r.Put("/api/admin/routing-overrides", admin.PutRoutingOverrides)
	}
	return r
}
