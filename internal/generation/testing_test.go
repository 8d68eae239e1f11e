package generation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-forge/internal/dedup"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/events"
	"github.com/phrazzld/scry-forge/internal/provider"
	"github.com/phrazzld/scry-forge/internal/routing"
	"github.com/phrazzld/scry-forge/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeQueue records enqueued jobs so tests can run them one at a time.
type fakeQueue struct {
	mu        sync.Mutex
	jobs      []*task.Job
	enqueued  int
	EnqueueFn func(taskType string, payload []byte) error
}

func (q *fakeQueue) Enqueue(_ context.Context, taskType string, payload []byte, _ task.EnqueueOptions) (uuid.UUID, error) {
	if q.EnqueueFn != nil {
		if err := q.EnqueueFn(taskType, payload); err != nil {
			return uuid.Nil, err
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	job := &task.Job{ID: uuid.New(), Type: taskType, Payload: payload, Attempts: 1, MaxAttempts: 3}
	q.jobs = append(q.jobs, job)
	q.enqueued++
	return job.ID, nil
}

func (q *fakeQueue) pop() *task.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueued
}

type fakeInvoker struct {
	calls    atomic.Int32
	InvokeFn func(call int, prompt string) (string, error)
}

func (f *fakeInvoker) Invoke(_ context.Context, _, _, prompt string, _ provider.Options) (string, error) {
	n := int(f.calls.Add(1))
	return f.InvokeFn(n, prompt)
}

type fakeRouter struct{}

func (fakeRouter) Route(_ context.Context, _ string, _ routing.Complexity, _ bool) routing.Decision {
	return routing.Decision{Provider: "gemini", ModelID: "gemini-2.0-flash", Temperature: 0.7, Source: routing.SourceDefault}
}

type recordingBus struct {
	mu     sync.Mutex
	events []*events.LifecycleEvent
}

func (b *recordingBus) Publish(_ context.Context, ev *events.LifecycleEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Name
	}
	return out
}

func (b *recordingBus) last() *events.LifecycleEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	return b.events[len(b.events)-1]
}

type harness struct {
	store    *MemoryArtifactStore
	queue    *fakeQueue
	invoker  *fakeInvoker
	bus      *recordingBus
	cache    *dedup.Cache
	engine   *Engine
	service  *Service
	failures []error
}

func newHarness(t *testing.T, invoke func(call int, prompt string) (string, error), cfg EngineConfig) *harness {
	t.Helper()
	h := &harness{
		store:   NewMemoryArtifactStore(),
		queue:   &fakeQueue{},
		invoker: &fakeInvoker{InvokeFn: invoke},
		bus:     &recordingBus{},
	}
	h.cache = dedup.NewCache(dedup.NewMemoryStore(), dedup.DefaultTTLConfig(), testLogger())
	deps := Dependencies{
		Store:    h.store,
		Queue:    h.queue,
		Router:   fakeRouter{},
		Invoker:  h.invoker,
		Cache:    h.cache,
		Notifier: events.NewNotifier(h.bus, 0, testLogger()),
	}
	if cfg.Shuffle == nil {
		cfg.Shuffle = func(int, func(i, j int)) {}
	}
	h.engine = NewEngine(deps, cfg, testLogger())
	h.service = NewService(deps, testLogger())
	return h
}

// drain runs queued jobs the way the task runner would until the queue is
// empty or a job errors. Permanent errors are handed to OnFailure.
func (h *harness) drain(t *testing.T) error {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		job := h.queue.pop()
		if job == nil {
			return nil
		}
		if err := h.engine.Handle(ctx, job); err != nil {
			if task.IsPermanent(err) {
				h.engine.OnFailure(ctx, job, err)
				h.failures = append(h.failures, err)
			}
			return err
		}
	}
	t.Fatal("queue did not drain")
	return nil
}

func quizRequest(target int) *domain.GenerationRequest {
	return &domain.GenerationRequest{
		Kind:        domain.KindQuiz,
		Topic:       "Go concurrency",
		TargetCount: target,
	}
}

// quizJSON returns n short answer questions numbered from start.
func quizJSON(start, n int) string {
	qs := make([]string, n)
	for i := range qs {
		qs[i] = fmt.Sprintf(`{"type":"short_answer","question":"Question %d?","answer":"Answer %d"}`, start+i, start+i)
	}
	return `{"title":"Go quiz","description":"Channels and goroutines","questions":[` + strings.Join(qs, ",") + `]}`
}

// fakeSources resolves every source to a fixed text.
type fakeSources struct {
	text string
	err  error
	refs []domain.SourceRef
}

func (f *fakeSources) ResolveSources(_ context.Context, refs []domain.SourceRef) (string, error) {
	f.refs = refs
	return f.text, f.err
}

// withSources wires r into both the engine and the service.
func (h *harness) withSources(r SourceResolver) *harness {
	h.engine.deps.Sources = r
	h.service.deps.Sources = r
	return h
}

func sourcesOnlyRequest(target int) *domain.GenerationRequest {
	return &domain.GenerationRequest{
		Kind:        domain.KindQuiz,
		Sources:     []domain.SourceRef{{ID: "doc-1", MediaType: "text/plain"}},
		TargetCount: target,
	}
}
