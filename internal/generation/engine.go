package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/scry-forge/internal/dedup"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/events"
	"github.com/phrazzld/scry-forge/internal/parser"
	"github.com/phrazzld/scry-forge/internal/platform/logger"
	"github.com/phrazzld/scry-forge/internal/platform/metrics"
	"github.com/phrazzld/scry-forge/internal/platform/tracing"
	"github.com/phrazzld/scry-forge/internal/provider"
	"github.com/phrazzld/scry-forge/internal/redact"
	"github.com/phrazzld/scry-forge/internal/task"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Chunk outcomes recorded in metrics
const (
	outcomeAppended  = "appended"
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeRetry     = "retry"
	outcomeSkipped   = "skipped"
)

// Dependencies holds the collaborators of the Engine and the Service.
// Sources is optional.
type Dependencies struct {
	Store    ArtifactStore
	Queue    Queue
	Router   Router
	Invoker  Invoker
	Parser   *parser.Parser
	Cache    *dedup.Cache
	Notifier *events.Notifier
	Sources  SourceResolver
}

// EngineConfig tunes the Engine.
type EngineConfig struct {
	MaxChunks int
	// Shuffle permutes quiz items; nil uses DefaultShuffler.
	Shuffle Shuffler
}

// Engine executes one chunk of a generation job per queued task. It is a
// task.Handler and task.FailureHandler for TaskTypeChunk.
type Engine struct {
	deps   Dependencies
	config EngineConfig
	tracer trace.Tracer
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(deps Dependencies, config EngineConfig, logger *slog.Logger) *Engine {
	if config.MaxChunks <= 0 {
		config.MaxChunks = DefaultMaxChunks
	}
	if config.Shuffle == nil {
		config.Shuffle = DefaultShuffler
	}
	if deps.Parser == nil {
		deps.Parser = parser.New(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		deps:   deps,
		config: config,
		tracer: otel.Tracer(tracing.InstrumentationName),
		logger: logger.With("component", "generation_engine"),
	}
}

// Handle implements task.Handler.
func (e *Engine) Handle(ctx context.Context, job *task.Job) error {
	var p ChunkPayload
	if err := job.Decode(&p); err != nil {
		return err
	}

	ctx, span := e.tracer.Start(ctx, "generation.chunk", trace.WithAttributes(
		attribute.String("generation.job_id", p.JobID.String()),
		attribute.String("generation.artifact_id", p.ArtifactID.String()),
		attribute.String("generation.kind", string(p.Request.Kind)),
		attribute.Int("generation.chunk_index", p.ChunkIndex),
		attribute.Int("task.attempt", job.Attempts),
	))
	defer span.End()

	err := e.runChunk(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, redact.Error(err))
	}
	return err
}

func (e *Engine) runChunk(ctx context.Context, p ChunkPayload) error {
	log := logger.FromContextOrDefault(ctx, e.logger).With(
		"job_id", p.JobID,
		"artifact_id", p.ArtifactID,
		"chunk", p.ChunkIndex)
	kind := string(p.Request.Kind)

	art, err := e.deps.Store.Get(ctx, p.ArtifactID)
	if errors.Is(err, ErrArtifactNotFound) {
		return task.Permanent(err)
	}
	if err != nil {
		return fmt.Errorf("failed to load artifact: %w", err)
	}

	switch {
	case art.Status.Terminal():
		log.InfoContext(ctx, "artifact already finished, skipping chunk", "status", art.Status)
		metrics.RecordChunk(kind, outcomeSkipped)
		return nil
	case art.Remaining() <= 0:
		return e.complete(ctx, log, p, art.Produced(), art.TargetCount)
	case art.ChunkIndex >= p.ChunkIndex:
		// Replay of a chunk whose items are already stored.
		log.InfoContext(ctx, "chunk already applied, advancing", "applied_chunk", art.ChunkIndex)
		return e.advance(ctx, log, p, art.Produced(), art.TargetCount)
	case p.ChunkIndex > e.config.MaxChunks:
		return task.Permanent(fmt.Errorf("%w: chunk %d exceeds the limit of %d with %d of %d items",
			ErrStalled, p.ChunkIndex, e.config.MaxChunks, art.Produced(), art.TargetCount))
	}

	if art.Status == domain.ArtifactStatusPending {
		if err := e.deps.Store.SetStatus(ctx, art.ID, domain.ArtifactStatusGenerating, ""); err != nil {
			return fmt.Errorf("failed to mark artifact generating: %w", err)
		}
	}

	requested := min(ChunkSize(p.Request.Kind), art.Remaining())
	out, err := e.generate(ctx, log, p, art, requested)
	if err != nil {
		metrics.RecordChunk(kind, outcomeRetry)
		return err
	}

	if out.returned == 0 {
		if art.Produced() == 0 {
			return task.Permanent(fmt.Errorf("%w: chunk %d returned nothing", ErrNoItems, p.ChunkIndex))
		}
		return task.Permanent(fmt.Errorf("%w: chunk %d returned nothing with %d of %d items",
			ErrStalled, p.ChunkIndex, art.Produced(), art.TargetCount))
	}
	if len(out.items) == 0 {
		metrics.RecordItems(kind, 0, out.dropped)
		metrics.RecordChunk(kind, outcomeRetry)
		return fmt.Errorf("%w: %d returned", ErrAllItemsInvalid, out.returned)
	}

	items := out.items
	if len(items) > requested {
		items = items[:requested]
	}
	if Shuffles(p.Request.Kind) {
		shuffleItems(items, e.config.Shuffle)
	}
	raw, err := encodeItems(items)
	if err != nil {
		return task.Permanent(fmt.Errorf("failed to encode items: %w", err))
	}

	var meta *domain.Metadata
	if p.ChunkIndex == 1 {
		meta = out.meta
	}
	total, err := e.deps.Store.AppendItems(ctx, art.ID, raw, meta, p.ChunkIndex)
	if err != nil {
		return fmt.Errorf("failed to append items: %w", err)
	}
	metrics.RecordItems(kind, len(raw), out.dropped)
	metrics.RecordChunk(kind, outcomeAppended)

	log.InfoContext(ctx, "chunk appended",
		"appended", len(raw),
		"dropped", out.dropped,
		"total", total,
		"target", art.TargetCount)

	e.deps.Notifier.Emit(ctx, events.KindProgress, e.event(p, total, art.TargetCount, ""))
	return e.advance(ctx, log, p, total, art.TargetCount)
}

// generate routes, invokes and parses one chunk.
func (e *Engine) generate(
	ctx context.Context,
	log *slog.Logger,
	p ChunkPayload,
	art *domain.Artifact,
	requested int,
) (chunkItems, error) {
	req := &p.Request

	content, err := e.content(ctx, req)
	if err != nil {
		return chunkItems{}, err
	}
	prompt, err := BuildPrompt(req, p.ChunkIndex, requested, content, headlines(req.Kind, art.Items))
	if err != nil {
		return chunkItems{}, task.Permanent(err)
	}

	decision := e.deps.Router.Route(ctx, RoutingTask(req.Kind), Complexity(req), req.HasMultimodalSources())
	log.DebugContext(ctx, "chunk routed",
		"provider", decision.Provider,
		"model", decision.ModelID,
		"route_source", decision.Source,
		"requested", requested)

	text, err := e.deps.Invoker.Invoke(ctx, decision.Provider, decision.ModelID, prompt, provider.Options{
		Temperature: decision.Temperature,
		JSON:        true,
	})
	if err != nil {
		if terminalProviderError(err) {
			return chunkItems{}, task.Permanent(err)
		}
		return chunkItems{}, err
	}

	result, err := e.deps.Parser.Parse(text, parserShape(req.Kind))
	if err != nil {
		var exhausted *parser.ExhaustedError
		if errors.As(err, &exhausted) {
			log.WarnContext(ctx, "provider response could not be parsed",
				"provider", decision.Provider,
				"model", decision.ModelID,
				"response_length", exhausted.Length,
				"excerpt", redact.String(exhausted.Excerpt()))
		}
		return chunkItems{}, err
	}
	return extractItems(req.Kind, result.Value), nil
}

// content joins the request content with the text of resolved sources.
// Without a resolver, sources are ignored unless they are the only input.
func (e *Engine) content(ctx context.Context, req *domain.GenerationRequest) (string, error) {
	if len(req.Sources) == 0 {
		return req.Content, nil
	}
	if e.deps.Sources == nil {
		if req.SourcesOnly() {
			return "", task.Permanent(ErrSourcesUnavailable)
		}
		return req.Content, nil
	}
	resolved, err := e.deps.Sources.ResolveSources(ctx, req.Sources)
	if err != nil {
		return "", fmt.Errorf("failed to resolve sources: %w", err)
	}
	parts := make([]string, 0, 2)
	for _, s := range []string{req.Content, resolved} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// advance completes the artifact or schedules the next chunk.
func (e *Engine) advance(ctx context.Context, log *slog.Logger, p ChunkPayload, produced, target int) error {
	if produced >= target {
		return e.complete(ctx, log, p, produced, target)
	}

	next := p.Next()
	raw, err := next.marshal()
	if err != nil {
		return task.Permanent(err)
	}
	if _, err := e.deps.Queue.Enqueue(ctx, TaskTypeChunk, raw, task.EnqueueOptions{}); err != nil {
		return fmt.Errorf("failed to enqueue chunk %d: %w", next.ChunkIndex, err)
	}
	log.DebugContext(ctx, "next chunk queued", "next_chunk", next.ChunkIndex)
	return nil
}

func (e *Engine) complete(ctx context.Context, log *slog.Logger, p ChunkPayload, produced, target int) error {
	if err := e.deps.Store.SetStatus(ctx, p.ArtifactID, domain.ArtifactStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to mark artifact completed: %w", err)
	}
	e.finalize(ctx, log, p, dedup.StatusCompleted)
	metrics.RecordChunk(string(p.Request.Kind), outcomeCompleted)

	log.InfoContext(ctx, "generation completed", "items", produced, "target", target)
	e.deps.Notifier.Emit(ctx, events.KindCompleted, e.event(p, produced, target, ""))
	return nil
}

// OnFailure implements task.FailureHandler. It runs once a chunk fails
// permanently or runs out of attempts.
func (e *Engine) OnFailure(ctx context.Context, job *task.Job, cause error) {
	var p ChunkPayload
	if err := job.Decode(&p); err != nil {
		e.logger.ErrorContext(ctx, "cannot decode failed chunk payload",
			"task_id", job.ID,
			"error", redact.Error(err))
		return
	}
	log := logger.FromContextOrDefault(ctx, e.logger).With(
		"job_id", p.JobID,
		"artifact_id", p.ArtifactID,
		"chunk", p.ChunkIndex)

	msg := UserMessage(cause)
	log.ErrorContext(ctx, "generation failed",
		"attempts", job.Attempts,
		"reason", msg,
		"error", redact.Error(cause))

	produced, target := 0, p.Request.TargetCount
	art, err := e.deps.Store.Get(ctx, p.ArtifactID)
	switch {
	case err != nil:
		log.WarnContext(ctx, "cannot load artifact of failed job", "error", redact.Error(err))
	case art.Status == domain.ArtifactStatusCompleted:
		log.WarnContext(ctx, "ignoring failure of completed artifact")
		return
	default:
		produced, target = art.Produced(), art.TargetCount
	}

	if err == nil {
		if err := e.deps.Store.SetStatus(ctx, p.ArtifactID, domain.ArtifactStatusFailed, msg); err != nil {
			log.ErrorContext(ctx, "failed to mark artifact failed", "error", redact.Error(err))
		}
	}
	e.finalize(ctx, log, p, dedup.StatusFailed)
	metrics.RecordChunk(string(p.Request.Kind), outcomeFailed)
	e.deps.Notifier.Emit(ctx, events.KindFailed, e.event(p, produced, target, msg))
}

// finalize records the terminal dedup state. Failures are logged only; the
// artifact status is authoritative.
func (e *Engine) finalize(ctx context.Context, log *slog.Logger, p ChunkPayload, status dedup.Status) {
	if e.deps.Cache == nil || p.Fingerprint == "" {
		return
	}
	err := e.deps.Cache.Finalize(ctx, p.Request.Kind, p.Fingerprint, status, p.JobID, p.ArtifactID.String())
	if err != nil {
		log.WarnContext(ctx, "failed to finalize dedup entry",
			"status", status,
			"error", redact.Error(err))
	}
}

func (e *Engine) event(p ChunkPayload, current, target int, message string) events.LifecycleEvent {
	return events.LifecycleEvent{
		JobID:        p.JobID,
		Fingerprint:  p.Fingerprint.String(),
		ArtifactID:   p.ArtifactID,
		ArtifactKind: string(p.Request.Kind),
		Current:      current,
		Target:       target,
		ChunkIndex:   p.ChunkIndex,
		Message:      message,
	}
}

func parserShape(kind domain.ArtifactKind) parser.Shape {
	return parser.Shape{ItemsKey: domain.ItemsKey(kind)}
}

// terminalProviderError reports whether retrying the call cannot help.
func terminalProviderError(err error) bool {
	return errors.Is(err, provider.ErrQuotaExceeded) ||
		errors.Is(err, provider.ErrContentBlocked) ||
		errors.Is(err, provider.ErrInvalidRequest) ||
		errors.Is(err, provider.ErrUnknownProvider)
}
