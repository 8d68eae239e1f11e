package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ArtifactStatus represents the lifecycle state of an artifact.
type ArtifactStatus string

// Possible artifact status values
const (
	ArtifactStatusPending    ArtifactStatus = "pending"
	ArtifactStatusGenerating ArtifactStatus = "generating"
	ArtifactStatusCompleted  ArtifactStatus = "completed"
	ArtifactStatusFailed     ArtifactStatus = "failed"
)

// Valid reports whether s is a known artifact status.
func (s ArtifactStatus) Valid() bool {
	switch s {
	case ArtifactStatusPending, ArtifactStatusGenerating, ArtifactStatusCompleted, ArtifactStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further chunks will run for the artifact.
func (s ArtifactStatus) Terminal() bool {
	return s == ArtifactStatusCompleted || s == ArtifactStatusFailed
}

// Artifact is the persisted result of a generation job. Items holds the
// accumulated, validated items in production order and is the authoritative
// record of how much work has been done.
type Artifact struct {
	ID          uuid.UUID         `json:"id"`
	JobID       uuid.UUID         `json:"job_id"`
	Fingerprint string            `json:"fingerprint"`
	OwnerID     string            `json:"owner_id,omitempty"`
	Kind        ArtifactKind      `json:"kind"`
	Status      ArtifactStatus    `json:"status"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Topic       string            `json:"topic,omitempty"`
	Items       []json.RawMessage `json:"items"`
	TargetCount int               `json:"target_count"`
	ChunkIndex  int               `json:"chunk_index"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewArtifact creates a pending artifact for the request.
func NewArtifact(req *GenerationRequest, jobID uuid.UUID, fingerprint string) *Artifact {
	now := time.Now().UTC()
	return &Artifact{
		ID:          uuid.New(),
		JobID:       jobID,
		Fingerprint: fingerprint,
		OwnerID:     req.OwnerID,
		Kind:        req.Kind,
		Status:      ArtifactStatusPending,
		Topic:       req.Topic,
		Items:       []json.RawMessage{},
		TargetCount: req.TargetCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Produced returns the number of accumulated items.
func (a *Artifact) Produced() int {
	return len(a.Items)
}

// Remaining returns how many items are still needed to reach the target.
// It is negative when the artifact already holds more than the target.
func (a *Artifact) Remaining() int {
	return a.TargetCount - len(a.Items)
}

// Metadata carries descriptive fields the provider returns alongside items.
// It is merged into the artifact once, on the first chunk.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Empty reports whether the metadata carries no values.
func (m Metadata) Empty() bool {
	return m.Title == "" && m.Description == ""
}
