package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrNoProvider is returned when no LLM provider has credentials.
var ErrNoProvider = errors.New("at least one LLM provider API key is required")

// setDefaults registers every key with viper. Registering a key is what
// lets AutomaticEnv pick up its SCRY_ variable during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.admin_token", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.max_attempts", 3)
	v.SetDefault("task.retry_base_delay", 5*time.Second)
	v.SetDefault("task.retry_max_delay", 2*time.Minute)
	v.SetDefault("task.stuck_task_age", 30*time.Minute)
	v.SetDefault("task.stuck_task_check_interval", 5*time.Minute)
	v.SetDefault("task.delayed_poll_interval", 2*time.Second)

	v.SetDefault("generation.provider_timeout", 3*time.Minute)
	v.SetDefault("generation.max_chunks", 10)
	v.SetDefault("generation.pending_ttl", 10*time.Minute)
	v.SetDefault("generation.failed_ttl", 15*time.Minute)
	v.SetDefault("generation.quiz_ttl", 24*time.Hour)
	v.SetDefault("generation.flashcards_ttl", 24*time.Hour)
	v.SetDefault("generation.guide_ttl", 12*time.Hour)
	v.SetDefault("generation.summary_ttl", 6*time.Hour)

	v.SetDefault("routing.refresh_interval", 30*time.Second)
	v.SetDefault("routing.default_provider", "")
	v.SetDefault("routing.multimodal_provider", "")

	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.requests_per_minute", 0)
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.openai.requests_per_minute", 0)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_base_delay", 2*time.Second)

	v.SetDefault("events.channel", "scry:generation-events")
	v.SetDefault("events.publish_timeout", 2*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.service_name", "scry-forge")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SCRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.LLM.Gemini.APIKey == "" && cfg.LLM.OpenAI.APIKey == "" {
		return fmt.Errorf("config validation failed: %w", ErrNoProvider)
	}
	return nil
}
