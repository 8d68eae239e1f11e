package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/dedup"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/events"
	"github.com/phrazzld/scry-forge/internal/platform/logger"
	"github.com/phrazzld/scry-forge/internal/redact"
	"github.com/phrazzld/scry-forge/internal/task"
)

// Ticket is the answer to a generation request.
type Ticket struct {
	JobID       uuid.UUID         `json:"job_id"`
	ArtifactID  uuid.UUID         `json:"artifact_id"`
	Fingerprint dedup.Fingerprint `json:"fingerprint"`
	// Deduplicated is true when an identical request is already running or
	// finished and no new job was started.
	Deduplicated bool         `json:"deduplicated"`
	Status       dedup.Status `json:"status"`
}

// Service accepts generation requests.
type Service struct {
	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. Cache may be nil, in which case every
// request starts a new job.
func NewService(deps Dependencies, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps:   deps,
		logger: logger.With("component", "generation_service"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Request validates req, deduplicates it and schedules its first chunk.
// Validation failures wrap domain.ErrValidation.
func (s *Service) Request(ctx context.Context, req *domain.GenerationRequest) (*Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.deps.Sources == nil && req.SourcesOnly() {
		return nil, fmt.Errorf("%w: %w; provide a topic or content", domain.ErrValidation, ErrSourcesUnavailable)
	}
	if req.RequestID == uuid.Nil {
		req.RequestID = uuid.New()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = s.now()
	}

	fp := dedup.Compute(req)
	jobID := uuid.New()
	art := domain.NewArtifact(req, jobID, fp.String())
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		"request_id", req.RequestID,
		"kind", req.Kind,
		"fingerprint", fp)

	reserved := false
	if s.deps.Cache != nil {
		entry, ok, err := s.deps.Cache.CheckOrReserve(ctx, req.Kind, fp, jobID, art.ID.String())
		switch {
		case err != nil:
			// Dedup is best effort; run without a reservation.
			log.WarnContext(ctx, "dedup unavailable, starting job without reservation",
				"error", redact.Error(err))
		case !ok:
			log.InfoContext(ctx, "request deduplicated", "job_id", entry.JobID, "status", entry.Status)
			return dedupTicket(fp, entry), nil
		default:
			reserved = true
		}
	}

	if err := s.deps.Store.Create(ctx, art); err != nil {
		s.release(ctx, log, req.Kind, fp, jobID, art.ID, reserved)
		return nil, fmt.Errorf("failed to create artifact: %w", err)
	}

	payload := ChunkPayload{
		JobID:       jobID,
		Fingerprint: fp,
		ArtifactID:  art.ID,
		ChunkIndex:  1,
		Request:     *req,
	}
	raw, err := payload.marshal()
	if err == nil {
		_, err = s.deps.Queue.Enqueue(ctx, TaskTypeChunk, raw, task.EnqueueOptions{})
	}
	if err != nil {
		if serr := s.deps.Store.SetStatus(ctx, art.ID, domain.ArtifactStatusFailed, msgTransient); serr != nil {
			log.WarnContext(ctx, "failed to mark unscheduled artifact failed", "error", redact.Error(serr))
		}
		s.release(ctx, log, req.Kind, fp, jobID, art.ID, reserved)
		return nil, fmt.Errorf("failed to schedule generation: %w", err)
	}

	log.InfoContext(ctx, "generation scheduled",
		"job_id", jobID,
		"artifact_id", art.ID,
		"target", req.TargetCount)
	s.deps.Notifier.Emit(ctx, events.KindStarted, events.LifecycleEvent{
		JobID:        jobID,
		Fingerprint:  fp.String(),
		ArtifactID:   art.ID,
		ArtifactKind: string(req.Kind),
		Current:      0,
		Target:       req.TargetCount,
	})

	return &Ticket{
		JobID:       jobID,
		ArtifactID:  art.ID,
		Fingerprint: fp,
		Status:      dedup.StatusPending,
	}, nil
}

// release marks a reservation failed so it no longer blocks retries.
func (s *Service) release(
	ctx context.Context,
	log *slog.Logger,
	kind domain.ArtifactKind,
	fp dedup.Fingerprint,
	jobID, artifactID uuid.UUID,
	reserved bool,
) {
	if !reserved {
		return
	}
	if err := s.deps.Cache.Finalize(ctx, kind, fp, dedup.StatusFailed, jobID, artifactID.String()); err != nil {
		log.WarnContext(ctx, "failed to release dedup reservation", "error", redact.Error(err))
	}
}

func dedupTicket(fp dedup.Fingerprint, entry *dedup.Entry) *Ticket {
	t := &Ticket{
		JobID:        entry.JobID,
		Fingerprint:  fp,
		Deduplicated: true,
		Status:       entry.Status,
	}
	if id, err := uuid.Parse(entry.ResultRef); err == nil {
		t.ArtifactID = id
	}
	return t
}

// Status returns the artifact with its accumulated items.
func (s *Service) Status(ctx context.Context, artifactID uuid.UUID) (*domain.Artifact, error) {
	return s.deps.Store.Get(ctx, artifactID)
}

// Invalidate removes dedup entries matching pattern, which is a key or a
// '*' glob relative to the dedup prefix.
func (s *Service) Invalidate(ctx context.Context, pattern string) (int, error) {
	if s.deps.Cache == nil {
		return 0, ErrNoCache
	}
	return s.deps.Cache.Invalidate(ctx, pattern)
}
