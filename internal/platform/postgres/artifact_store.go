package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/generation"
	"github.com/phrazzld/scry-forge/internal/platform/logger"
	"github.com/phrazzld/scry-forge/internal/store"
)

const artifactColumns = `id, job_id, fingerprint, owner_id, kind, status, title, description, topic,
	items, target_count, chunk_index, error_message, created_at, updated_at`

// ArtifactStore implements generation.ArtifactStore. Items are kept in a
// JSONB array and appended in place.
type ArtifactStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ generation.ArtifactStore = (*ArtifactStore)(nil)

// NewArtifactStore creates an ArtifactStore.
func NewArtifactStore(db *sql.DB, logger *slog.Logger) *ArtifactStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactStore{
		db:     db,
		logger: logger.With("component", "artifact_store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func notFound(id uuid.UUID) error {
	return fmt.Errorf("%w: %s (%w)", generation.ErrArtifactNotFound, id, store.ErrArtifactNotFound)
}

// Create implements generation.ArtifactStore.
func (s *ArtifactStore) Create(ctx context.Context, a *domain.Artifact) error {
	items := a.Items
	if items == nil {
		items = []json.RawMessage{}
	}
	rawItems, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode artifact items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, $14, $15)`,
		a.ID, a.JobID, a.Fingerprint, a.OwnerID, a.Kind, a.Status, a.Title, a.Description, a.Topic,
		string(rawItems), a.TargetCount, a.ChunkIndex, a.Error, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).ErrorContext(ctx, "failed to insert artifact",
			"artifact_id", a.ID,
			"error", err)
		return store.NewStoreError("artifact", "create", "insert failed", MapError(err))
	}
	return nil
}

// Get implements generation.ArtifactStore.
func (s *ArtifactStore) Get(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = $1`, id)

	var (
		a        domain.Artifact
		rawItems []byte
	)
	err := row.Scan(&a.ID, &a.JobID, &a.Fingerprint, &a.OwnerID, &a.Kind, &a.Status, &a.Title,
		&a.Description, &a.Topic, &rawItems, &a.TargetCount, &a.ChunkIndex, &a.Error,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, MapError(err)
	}

	if err := json.Unmarshal(rawItems, &a.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of artifact %s: %w", id, err)
	}
	if a.Items == nil {
		a.Items = []json.RawMessage{}
	}
	return &a, nil
}

// AppendItems implements generation.ArtifactStore. The row is locked while
// the chunk index is compared, so a replayed chunk never appends twice.
func (s *ArtifactStore) AppendItems(
	ctx context.Context,
	id uuid.UUID,
	items []json.RawMessage,
	meta *domain.Metadata,
	chunkIndex int,
) (int, error) {
	if items == nil {
		items = []json.RawMessage{}
	}
	rawItems, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("failed to encode items: %w", err)
	}
	var title, description string
	if meta != nil {
		title, description = meta.Title, meta.Description
	}

	var total int
	err = store.RunInTransaction(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var applied int
		err := tx.QueryRowContext(ctx, `
			SELECT chunk_index, jsonb_array_length(items)
			FROM artifacts WHERE id = $1 FOR UPDATE`, id).Scan(&applied, &total)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(id)
		}
		if err != nil {
			return MapError(err)
		}
		if chunkIndex <= applied {
			logger.FromContextOrDefault(ctx, s.logger).InfoContext(ctx, "chunk already appended",
				"artifact_id", id,
				"chunk", chunkIndex,
				"applied_chunk", applied)
			return nil
		}

		return tx.QueryRowContext(ctx, `
			UPDATE artifacts
			SET items = items || $2::jsonb,
			    chunk_index = $3,
			    title = CASE WHEN title = '' THEN $4 ELSE title END,
			    description = CASE WHEN description = '' THEN $5 ELSE description END,
			    updated_at = $6
			WHERE id = $1
			RETURNING jsonb_array_length(items)`,
			id, string(rawItems), chunkIndex, title, description, s.now()).Scan(&total)
	})
	if err != nil {
		return 0, store.NewStoreError("artifact", "append", fmt.Sprintf("chunk %d", chunkIndex), err)
	}
	return total, nil
}

// SetStatus implements generation.ArtifactStore.
func (s *ArtifactStore) SetStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.ArtifactStatus,
	errMsg string,
) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidArtifactStatus, status)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE artifacts SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1`,
		id, status, errMsg, s.now())
	if err != nil {
		return store.NewStoreError("artifact", "set status", string(status), MapError(err))
	}
	return CheckRowsAffected(result, notFound(id))
}
