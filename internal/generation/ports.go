package generation

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/provider"
	"github.com/phrazzld/scry-forge/internal/routing"
	"github.com/phrazzld/scry-forge/internal/task"
)

// ArtifactStore persists artifacts.
type ArtifactStore interface {
	// Create inserts a new artifact.
	Create(ctx context.Context, artifact *domain.Artifact) error

	// Get returns the artifact or ErrArtifactNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Artifact, error)

	// AppendItems appends items, records chunkIndex as the last applied
	// chunk and merges meta when non-nil. It returns the new item count.
	AppendItems(
		ctx context.Context,
		id uuid.UUID,
		items []json.RawMessage,
		meta *domain.Metadata,
		chunkIndex int,
	) (int, error)

	// SetStatus changes the status and error message.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.ArtifactStatus, errMsg string) error
}

// Queue schedules background jobs.
type Queue interface {
	Enqueue(ctx context.Context, taskType string, payload []byte, opts task.EnqueueOptions) (uuid.UUID, error)
}

// Invoker performs a provider call.
type Invoker interface {
	Invoke(ctx context.Context, providerID, modelID, prompt string, opts provider.Options) (string, error)
}

// Router picks the provider and model for a call.
type Router interface {
	Route(ctx context.Context, task string, complexity routing.Complexity, multimodal bool) routing.Decision
}

// SourceResolver loads the text of uploaded sources.
type SourceResolver interface {
	ResolveSources(ctx context.Context, refs []domain.SourceRef) (string, error)
}
