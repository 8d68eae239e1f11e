package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/generation"
)

// CreateGenerationRequest is the payload of POST /api/generations.
type CreateGenerationRequest struct {
	Kind        string             `json:"kind"`
	Topic       string             `json:"topic,omitempty"`
	Content     string             `json:"content,omitempty"`
	Sources     []domain.SourceRef `json:"sources,omitempty"`
	TargetCount int                `json:"target_count"`
	OwnerID     string             `json:"owner_id,omitempty"`
	Options     domain.Options     `json:"options"`
}

// toDomain converts the payload. The kind is parsed leniently; everything
// else is validated by the service.
func (c CreateGenerationRequest) toDomain() (*domain.GenerationRequest, error) {
	kind, err := domain.ParseArtifactKind(c.Kind)
	if err != nil {
		return nil, err
	}
	return &domain.GenerationRequest{
		OwnerID:     c.OwnerID,
		Kind:        kind,
		Topic:       c.Topic,
		Content:     c.Content,
		Sources:     c.Sources,
		TargetCount: c.TargetCount,
		Options:     c.Options,
	}, nil
}

// TicketResponse is returned when a generation request is accepted.
type TicketResponse struct {
	JobID        string `json:"job_id"`
	ArtifactID   string `json:"artifact_id,omitempty"`
	Fingerprint  string `json:"fingerprint"`
	Deduplicated bool   `json:"deduplicated"`
	Status       string `json:"status"`
}

func ticketToResponse(t *generation.Ticket) TicketResponse {
	resp := TicketResponse{
		JobID:        t.JobID.String(),
		Fingerprint:  string(t.Fingerprint),
		Deduplicated: t.Deduplicated,
		Status:       string(t.Status),
	}
	if t.ArtifactID != uuid.Nil {
		resp.ArtifactID = t.ArtifactID.String()
	}
	return resp
}

// ArtifactResponse is the state of one artifact.
type ArtifactResponse struct {
	ID          string            `json:"id"`
	JobID       string            `json:"job_id"`
	Kind        string            `json:"kind"`
	Status      string            `json:"status"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Topic       string            `json:"topic,omitempty"`
	Items       []json.RawMessage `json:"items"`
	Produced    int               `json:"produced"`
	TargetCount int               `json:"target_count"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func artifactToResponse(a *domain.Artifact) ArtifactResponse {
	items := a.Items
	if items == nil {
		items = []json.RawMessage{}
	}
	return ArtifactResponse{
		ID:          a.ID.String(),
		JobID:       a.JobID.String(),
		Kind:        string(a.Kind),
		Status:      string(a.Status),
		Title:       a.Title,
		Description: a.Description,
		Topic:       a.Topic,
		Items:       items,
		Produced:    a.Produced(),
		TargetCount: a.TargetCount,
		Error:       a.Error,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// InvalidateResponse reports how many cache entries were removed.
type InvalidateResponse struct {
	Pattern string `json:"pattern"`
	Removed int    `json:"removed"`
}

// RoutingOverridesResponse carries the raw admin routing overrides.
type RoutingOverridesResponse struct {
	Overrides map[string]any `json:"overrides"`
	Tasks     int            `json:"tasks"`
}
