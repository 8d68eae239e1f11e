package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/generation"
	"github.com/phrazzld/scry-forge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var artifactColumnNames = []string{
	"id", "job_id", "fingerprint", "owner_id", "kind", "status", "title", "description", "topic",
	"items", "target_count", "chunk_index", "error_message", "created_at", "updated_at",
}

func TestNewArtifactStore_NilDBPanics(t *testing.T) {
	assert.Panics(t, func() { NewArtifactStore(nil, nil) })
}

func TestArtifactStore_Create(t *testing.T) {
	db, mock := newMock(t)
	s := NewArtifactStore(db, quiet())

	req := &domain.GenerationRequest{Kind: domain.KindQuiz, Topic: "Go", TargetCount: 5}
	a := domain.NewArtifact(req, uuid.New(), "abc123")

	mock.ExpectExec(q("INSERT INTO artifacts")).
		WithArgs(a.ID, a.JobID, "abc123", "", domain.KindQuiz, domain.ArtifactStatusPending, "", "", "Go",
			"[]", 5, 0, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), a))
}

func TestArtifactStore_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	s := NewArtifactStore(db, quiet())

	mock.ExpectExec(q("INSERT INTO artifacts")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "artifacts_pkey"})

	a := domain.NewArtifact(&domain.GenerationRequest{Kind: domain.KindGuide, TargetCount: 4}, uuid.New(), "fp")
	err := s.Create(context.Background(), a)
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.True(t, store.IsDuplicateError(err))

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "artifact", storeErr.Entity)
	assert.Equal(t, "create", storeErr.Operation)
}

func TestArtifactStore_Get(t *testing.T) {
	db, mock := newMock(t)
	s := NewArtifactStore(db, quiet())
	id, jobID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(q("FROM artifacts WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(artifactColumnNames).AddRow(
			id.String(), jobID.String(), "fp", "owner-1", "flashcards", "generating", "Go cards", "", "Go",
			[]byte(`[{"front":"a","back":"b"},{"front":"c","back":"d"}]`), 10, 1, "", now, now))

	a, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	assert.Equal(t, jobID, a.JobID)
	assert.Equal(t, domain.KindFlashcards, a.Kind)
	assert.Equal(t, domain.ArtifactStatusGenerating, a.Status)
	assert.Equal(t, 10, a.TargetCount)
	assert.Equal(t, 1, a.ChunkIndex)
	require.Len(t, a.Items, 2)
	assert.JSONEq(t, `{"front":"c","back":"d"}`, string(a.Items[1]))
}

func TestArtifactStore_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	s := NewArtifactStore(db, quiet())

	mock.ExpectQuery(q("FROM artifacts WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(artifactColumnNames))

	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, generation.ErrArtifactNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func TestArtifactStore_AppendItems(t *testing.T) {
	db, mock := newMock(t)
	s := NewArtifactStore(db, quiet())
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT chunk_index, jsonb_array_length(items)")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_index", "jsonb_array_length"}).AddRow(1, 5))
	mock.ExpectQuery(q("SET items = items || $2::jsonb")).
		WithArgs(id, `[{"q":1},{"q":2}]`, 2, "Title", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"jsonb_array_length"}).AddRow(7))
	mock.ExpectCommit()

	total, err := s.AppendItems(context.Background(), id,
		[]json.RawMessage{json.RawMessage(`{"q":1}`), json.RawMessage(`{"q":2}`)},
		&domain.Metadata{Title: "Title"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}

func TestArtifactStore_AppendItemsReplayIsNoop(t *testing.T) {
	db, mock := newMock(t)
	s := NewArtifactStore(db, quiet())
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT chunk_index, jsonb_array_length(items)")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_index", "jsonb_array_length"}).AddRow(2, 10))
	mock.ExpectCommit()

	total, err := s.AppendItems(context.Background(), id, []json.RawMessage{json.RawMessage(`{}`)}, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}

func TestArtifactStore_AppendItemsMissingArtifact(t *testing.T) {
	db, mock := newMock(t)
	s := NewArtifactStore(db, quiet())

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT chunk_index")).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_index", "jsonb_array_length"}))
	mock.ExpectRollback()

	_, err := s.AppendItems(context.Background(), uuid.New(), nil, nil, 1)
	assert.ErrorIs(t, err, generation.ErrArtifactNotFound)
	assert.True(t, store.IsNotFoundError(err))

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "append", storeErr.Operation)
	assert.Equal(t, "chunk 1", storeErr.Message)
}

func TestArtifactStore_SetStatus(t *testing.T) {
	db, mock := newMock(t)
	s := NewArtifactStore(db, quiet())
	id := uuid.New()

	mock.ExpectExec(q("UPDATE artifacts SET status = $2")).
		WithArgs(id, domain.ArtifactStatusFailed, "Generation failed.", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SetStatus(context.Background(), id, domain.ArtifactStatusFailed, "Generation failed."))

	mock.ExpectExec(q("UPDATE artifacts SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.SetStatus(context.Background(), uuid.New(), domain.ArtifactStatusCompleted, "")
	assert.ErrorIs(t, err, generation.ErrArtifactNotFound)

	err = s.SetStatus(context.Background(), id, "archived", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArtifactStatus)
}

func TestArtifactStore_SetStatusDatabaseError(t *testing.T) {
	db, mock := newMock(t)
	s := NewArtifactStore(db, quiet())

	mock.ExpectExec(q("UPDATE artifacts SET status = $2")).
		WillReturnError(errors.New("connection refused"))
	err := s.SetStatus(context.Background(), uuid.New(), domain.ArtifactStatusCompleted, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "set status", storeErr.Operation)
}
