package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/domain"
)

// MemoryArtifactStore is an in-process ArtifactStore for tests and local
// runs without a database.
type MemoryArtifactStore struct {
	mu        sync.Mutex
	artifacts map[uuid.UUID]*domain.Artifact
	now       func() time.Time
}

// NewMemoryArtifactStore creates an empty store.
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{
		artifacts: make(map[uuid.UUID]*domain.Artifact),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func cloneArtifact(a *domain.Artifact) *domain.Artifact {
	c := *a
	c.Items = append([]json.RawMessage(nil), a.Items...)
	return &c
}

// Create implements ArtifactStore.
func (s *MemoryArtifactStore) Create(_ context.Context, artifact *domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[artifact.ID]; ok {
		return fmt.Errorf("artifact %s already exists", artifact.ID)
	}
	s.artifacts[artifact.ID] = cloneArtifact(artifact)
	return nil
}

// Get implements ArtifactStore.
func (s *MemoryArtifactStore) Get(_ context.Context, id uuid.UUID) (*domain.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	return cloneArtifact(a), nil
}

// AppendItems implements ArtifactStore. A chunk index at or below the last
// applied one is ignored and the current count returned.
func (s *MemoryArtifactStore) AppendItems(
	_ context.Context,
	id uuid.UUID,
	items []json.RawMessage,
	meta *domain.Metadata,
	chunkIndex int,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return 0, ErrArtifactNotFound
	}
	if chunkIndex <= a.ChunkIndex {
		return len(a.Items), nil
	}
	a.Items = append(a.Items, items...)
	a.ChunkIndex = chunkIndex
	if meta != nil {
		if a.Title == "" {
			a.Title = meta.Title
		}
		if a.Description == "" {
			a.Description = meta.Description
		}
	}
	a.UpdatedAt = s.now()
	return len(a.Items), nil
}

// SetStatus implements ArtifactStore.
func (s *MemoryArtifactStore) SetStatus(
	_ context.Context,
	id uuid.UUID,
	status domain.ArtifactStatus,
	errMsg string,
) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidArtifactStatus, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return ErrArtifactNotFound
	}
	a.Status = status
	a.Error = errMsg
	a.UpdatedAt = s.now()
	return nil
}
