package config

import (
	"time"

	"github.com/phrazzld/scry-forge/internal/routing"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"      validate:"required"`
	Task       TaskConfig       `mapstructure:"task"       validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Routing    RoutingConfig    `mapstructure:"routing"`
	LLM        LLMConfig        `mapstructure:"llm"        validate:"required"`
	Events     EventsConfig     `mapstructure:"events"     validate:"required"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// AdminToken guards the admin endpoints. They are not mounted when empty.
	AdminToken string `mapstructure:"admin_token"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"            validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// RedisConfig configures the shared cache and event bus connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"     validate:"required,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       validate:"gte=0"`
}

// TaskConfig configures the background job queue.
type TaskConfig struct {
	WorkerCount            int           `mapstructure:"worker_count"              validate:"gte=1"`
	QueueSize              int           `mapstructure:"queue_size"                validate:"gte=1"`
	MaxAttempts            int           `mapstructure:"max_attempts"              validate:"gte=1"`
	RetryBaseDelay         time.Duration `mapstructure:"retry_base_delay"          validate:"gt=0"`
	RetryMaxDelay          time.Duration `mapstructure:"retry_max_delay"           validate:"gtefield=RetryBaseDelay"`
	StuckTaskAge           time.Duration `mapstructure:"stuck_task_age"            validate:"gt=0"`
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"gt=0"`
	DelayedPollInterval    time.Duration `mapstructure:"delayed_poll_interval"     validate:"gt=0"`
}

// GenerationConfig configures the chunked generation engine and dedup cache.
type GenerationConfig struct {
	ProviderTimeout time.Duration `mapstructure:"provider_timeout" validate:"gt=0"`
	MaxChunks       int           `mapstructure:"max_chunks"       validate:"gte=1,lte=50"`
	PendingTTL      time.Duration `mapstructure:"pending_ttl"      validate:"gt=0"`
	FailedTTL       time.Duration `mapstructure:"failed_ttl"       validate:"gt=0"`
	QuizTTL         time.Duration `mapstructure:"quiz_ttl"         validate:"gt=0"`
	FlashcardsTTL   time.Duration `mapstructure:"flashcards_ttl"   validate:"gt=0"`
	GuideTTL        time.Duration `mapstructure:"guide_ttl"        validate:"gt=0"`
	SummaryTTL      time.Duration `mapstructure:"summary_ttl"      validate:"gt=0"`
}

// RoutingConfig holds the default routing strategy. When no providers are
// configured the built-in policy is used.
type RoutingConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	routing.Policy  `mapstructure:",squash"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	Gemini         GeminiConfig  `mapstructure:"gemini"`
	OpenAI         OpenAIConfig  `mapstructure:"openai"`
	MaxRetries     int           `mapstructure:"max_retries"      validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gt=0"`
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey            string `mapstructure:"api_key"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" validate:"gte=0"`
}

// OpenAIConfig configures the OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"            validate:"required,url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" validate:"gte=0"`
}

// EventsConfig configures lifecycle event publishing.
type EventsConfig struct {
	Channel        string        `mapstructure:"channel"         validate:"required"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" validate:"gt=0"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"     validate:"omitempty,oneof=stdout otlp"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}
