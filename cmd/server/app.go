package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-forge/internal/api"
	"github.com/phrazzld/scry-forge/internal/config"
	"github.com/phrazzld/scry-forge/internal/dedup"
	"github.com/phrazzld/scry-forge/internal/domain"
	"github.com/phrazzld/scry-forge/internal/events"
	"github.com/phrazzld/scry-forge/internal/generation"
	"github.com/phrazzld/scry-forge/internal/parser"
	"github.com/phrazzld/scry-forge/internal/platform/gemini"
	"github.com/phrazzld/scry-forge/internal/platform/openai"
	"github.com/phrazzld/scry-forge/internal/platform/postgres"
	"github.com/phrazzld/scry-forge/internal/platform/redis"
	"github.com/phrazzld/scry-forge/internal/provider"
	"github.com/phrazzld/scry-forge/internal/routing"
	"github.com/phrazzld/scry-forge/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// application holds the shared dependencies of the server and owns their
// shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	rdb    goredis.UniversalClient

	service    api.GenerationService
	settings   api.SettingsStore
	snapshots  *routing.SnapshotCache
	progress   *events.ProgressTracker
	taskRunner *task.TaskRunner
	health     map[string]api.Pinger
}

// newApplication wires the generation pipeline. The chunk handler is
// registered before the runner starts so recovered jobs find it.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	rdb goredis.UniversalClient,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		rdb:    rdb,
		health: map[string]api.Pinger{
			"database": db.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}

	registry, err := newProviderRegistry(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	invoker := provider.NewInvoker(registry, provider.InvokerConfig{
		Timeout: cfg.Generation.ProviderTimeout,
		RequestsPerMinute: map[string]int{
			gemini.ProviderID: cfg.LLM.Gemini.RequestsPerMinute,
			openai.ProviderID: cfg.LLM.OpenAI.RequestsPerMinute,
		},
	}, logger)

	settings := postgres.NewSettingsStore(db)
	app.settings = settings
	app.snapshots = routing.NewSnapshotCache(
		routingPolicy(cfg.Routing, registry.Names()),
		settings,
		cfg.Routing.RefreshInterval,
		logger,
	)

	app.progress = events.NewProgressTracker()
	local := events.NewInMemoryEventEmitter(logger)
	local.RegisterHandler(app.progress)
	bus := events.MultiBus{
		redis.NewBus(rdb, cfg.Events.Channel, cfg.Events.PublishTimeout, logger),
		local,
	}

	app.taskRunner = task.NewTaskRunner(postgres.NewTaskStore(db, logger), task.TaskRunnerConfig{
		WorkerCount:            cfg.Task.WorkerCount,
		QueueSize:              cfg.Task.QueueSize,
		StuckTaskAge:           cfg.Task.StuckTaskAge,
		StuckTaskCheckInterval: cfg.Task.StuckTaskCheckInterval,
		DelayedPollInterval:    cfg.Task.DelayedPollInterval,
		Retry: task.RetryPolicy{
			MaxAttempts: cfg.Task.MaxAttempts,
			BaseDelay:   cfg.Task.RetryBaseDelay,
			MaxDelay:    cfg.Task.RetryMaxDelay,
		},
	}, logger)

	deps := generation.Dependencies{
		Store:    postgres.NewArtifactStore(db, logger),
		Queue:    app.taskRunner,
		Router:   routing.NewRouter(app.snapshots),
		Invoker:  invoker,
		Parser:   parser.New(logger),
		Cache:    dedup.NewCache(redis.NewStore(rdb), ttlConfig(cfg.Generation), logger),
		Notifier: events.NewNotifier(bus, cfg.Events.PublishTimeout, logger),
	}
	engine := generation.NewEngine(deps, generation.EngineConfig{MaxChunks: cfg.Generation.MaxChunks}, logger)
	app.taskRunner.Register(generation.TaskTypeChunk, engine)
	app.service = generation.NewService(deps, logger)

	logger.Info("application initialized", "providers", registry.Names())
	return app, nil
}

// newProviderRegistry registers a client for every provider with an API key.
func newProviderRegistry(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*provider.Registry, error) {
	retry := provider.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
		MaxDelay:   provider.DefaultRetryPolicy().MaxDelay,
	}
	registry := provider.NewRegistry()

	if cfg.Gemini.APIKey != "" {
		client, err := gemini.New(ctx, logger, cfg.Gemini.APIKey, retry)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
		}
		registry.Register(client)
	}
	if cfg.OpenAI.APIKey != "" {
		client, err := openai.New(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Retry:   retry,
		}, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		registry.Register(client)
	}

	if len(registry.Names()) == 0 {
		return nil, config.ErrNoProvider
	}
	return registry, nil
}

// routingPolicy returns the configured policy, or the built-in one when
// none is configured, limited to the available providers.
func routingPolicy(cfg config.RoutingConfig, available []string) *routing.Policy {
	policy := cfg.Policy
	if len(policy.Providers) == 0 {
		policy = *routing.DefaultPolicy()
	}
	policy.Normalize()
	policy.Restrict(available)
	return &policy
}

func ttlConfig(cfg config.GenerationConfig) dedup.TTLConfig {
	return dedup.TTLConfig{
		Pending: cfg.PendingTTL,
		Failed:  cfg.FailedTTL,
		Completed: map[domain.ArtifactKind]time.Duration{
			domain.KindQuiz:       cfg.QuizTTL,
			domain.KindFlashcards: cfg.FlashcardsTTL,
			domain.KindGuide:      cfg.GuideTTL,
			domain.KindSummary:    cfg.SummaryTTL,
		},
		CompletedDefault: cfg.QuizTTL,
	}
}

// Run starts the workers and the HTTP server and blocks until ctx is done
// and shutdown has finished.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	var errs []error
	if app.rdb != nil {
		errs = append(errs, app.rdb.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		app.logger.Error("error closing connections", "error", err)
	}
	app.logger.Info("application shutdown completed")
}
