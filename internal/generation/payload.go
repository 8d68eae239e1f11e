package generation

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/dedup"
	"github.com/phrazzld/scry-forge/internal/domain"
)

// TaskTypeChunk is the job type of a chunk execution.
const TaskTypeChunk = "generation_chunk"

// ChunkPayload is the queued continuation state of a generation job. The
// artifact's items hold what has been produced; the payload only says
// which chunk runs next.
type ChunkPayload struct {
	JobID       uuid.UUID                `json:"job_id"`
	Fingerprint dedup.Fingerprint        `json:"fingerprint"`
	ArtifactID  uuid.UUID                `json:"artifact_id"`
	ChunkIndex  int                      `json:"chunk_index"`
	Request     domain.GenerationRequest `json:"request"`
}

// Next returns the payload of the following chunk.
func (p ChunkPayload) Next() ChunkPayload {
	p.ChunkIndex++
	return p
}

func (p ChunkPayload) marshal() ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode chunk payload: %w", err)
	}
	return raw, nil
}

// RoutingTask returns the routing task name for kind, e.g. "quiz_generation".
func RoutingTask(kind domain.ArtifactKind) string {
	return string(kind) + "_generation"
}
