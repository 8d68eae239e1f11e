package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/dedup"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_Accepted(t *testing.T) {
	jobID, artifactID := uuid.New(), uuid.New()
	var got *domain.GenerationRequest
	svc := &mockGenerationService{
		RequestFn: func(_ context.Context, req *domain.GenerationRequest) (*generation.Ticket, error) {
			got = req
			return &generation.Ticket{JobID: jobID, ArtifactID: artifactID, Fingerprint: "fp", Status: dedup.StatusPending}, nil
		},
	}
	router := newTestRouter(NewGenerationHandler(svc, nil), nil)

	body := `{"kind":"Quiz","topic":"Go channels","target_count":12,"options":{"difficulty":"hard"}}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.KindQuiz, got.Kind)
	assert.Equal(t, 12, got.TargetCount)
	assert.Equal(t, "hard", got.Options.Difficulty)

	var resp TicketResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, jobID.String(), resp.JobID)
	assert.Equal(t, artifactID.String(), resp.ArtifactID)
	assert.False(t, resp.Deduplicated)
	assert.Equal(t, "pending", resp.Status)
}

func TestCreate_DeduplicatedAnswers200(t *testing.T) {
	svc := &mockGenerationService{
		RequestFn: func(context.Context, *domain.GenerationRequest) (*generation.Ticket, error) {
			return &generation.Ticket{JobID: uuid.New(), Deduplicated: true, Status: dedup.StatusCompleted}, nil
		},
	}
	router := newTestRouter(NewGenerationHandler(svc, nil), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/generations",
		strings.NewReader(`{"kind":"summary","topic":"x","target_count":3}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deduplicated":true`)
	assert.NotContains(t, w.Body.String(), "artifact_id")
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantMsg    string
	}{
		{"malformed", `{"kind":`, nil, http.StatusBadRequest, "Invalid request format"},
		{"unknown field", `{"kind":"quiz","colour":"red"}`, nil, http.StatusBadRequest, "Invalid request format"},
		{"unknown kind", `{"kind":"poem","topic":"x","target_count":1}`, nil, http.StatusBadRequest, "Unsupported artifact kind"},
		{
			"target out of range", `{"kind":"quiz","topic":"x","target_count":500}`,
			fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrTargetOutOfRange),
			http.StatusBadRequest, "Requested item count is out of range for this kind",
		},
		{
			"missing input", `{"kind":"quiz","target_count":5}`,
			fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrMissingInput),
			http.StatusBadRequest, "A topic, content or sources are required",
		},
		{
			"internal", `{"kind":"quiz","topic":"x","target_count":5}`,
			errors.New("postgres://user:secret@db/scry unreachable"),
			http.StatusInternalServerError, "An unexpected error occurred",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockGenerationService{
				RequestFn: func(context.Context, *domain.GenerationRequest) (*generation.Ticket, error) {
					if tt.serviceErr == nil {
						t.Fatal("service should not be called")
					}
					return nil, tt.serviceErr
				},
			}
			router := newTestRouter(NewGenerationHandler(svc, nil), nil)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantMsg)
			assert.NotContains(t, w.Body.String(), "secret")
		})
	}
}

func TestGet(t *testing.T) {
	id := uuid.New()
	svc := &mockGenerationService{
		StatusFn: func(_ context.Context, got uuid.UUID) (*domain.Artifact, error) {
			if got != id {
				return nil, fmt.Errorf("%w: %s", generation.ErrArtifactNotFound, got)
			}
			a := domain.NewArtifact(&domain.GenerationRequest{Kind: domain.KindFlashcards, TargetCount: 10}, uuid.New(), "fp")
			a.ID = id
			a.Status = domain.ArtifactStatusGenerating
			a.Items = []json.RawMessage{json.RawMessage(`{"front":"a","back":"b"}`)}
			return a, nil
		},
	}
	router := newTestRouter(NewGenerationHandler(svc, nil), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generations/"+id.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ArtifactResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "generating", resp.Status)
	assert.Equal(t, 1, resp.Produced)
	assert.Equal(t, 10, resp.TargetCount)
	require.Len(t, resp.Items, 1)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generations/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generations/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid artifact ID")
}

func TestInvalidateCache(t *testing.T) {
	var pattern string
	svc := &mockGenerationService{
		InvalidateFn: func(_ context.Context, p string) (int, error) {
			pattern = p
			if p == "none" {
				return 0, generation.ErrNoCache
			}
			return 4, nil
		},
	}
	router := newTestRouter(NewGenerationHandler(svc, nil), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/generations/cache?pattern=quiz:*", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "quiz:*", pattern)
	assert.JSONEq(t, `{"pattern":"quiz:*","removed":4}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/generations/cache", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/generations/cache?pattern=none", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
