// Package config manages application configuration from config.yaml,
// ENVO_-prefixed environment variables, and default values.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Config defines the application configuration. Values can be set via
// environment variables prefixed with ENVO_ (e.g., ENVO_TELEGRAM_TOKEN)
// or through config.yaml.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Commands  CommandsConfig  `mapstructure:"commands"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the transport credentials and account identity.
// Token is the session credential for the transport; OwnerID is the
// account owner whose messages may carry commands.
type TelegramConfig struct {
	Token   string `mapstructure:"token"    validate:"required"`
	OwnerID int64  `mapstructure:"owner_id" validate:"required,gt=0"`
}

// GeminiConfig holds the generation backend settings.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"     validate:"required"`
	Model       string        `mapstructure:"model"       validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"min=0"`
}

// DatabaseConfig holds the SQLite store settings.
type DatabaseConfig struct {
	Path          string        `mapstructure:"path"           validate:"required"`
	RetentionDays int           `mapstructure:"retention_days" validate:"min=1"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"     validate:"min=1s"`
}

// CommandsConfig controls command classification and pipeline bounds.
type CommandsConfig struct {
	Prefix             string `mapstructure:"prefix"                validate:"required,len=1"`
	ContextMessages    int    `mapstructure:"context_messages"      validate:"min=1,max=10"`
	SearchResults      int    `mapstructure:"search_results"        validate:"min=1,max=25"`
	SearchPreviewChars int    `mapstructure:"search_preview_chars"  validate:"min=10,max=500"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute" validate:"min=1"`
}

// MessagesConfig holds the user-visible message strings.
type MessagesConfig struct {
	Working     string `mapstructure:"working"      validate:"required"`
	RateLimited string `mapstructure:"rate_limited" validate:"required"`
	NoResults   string `mapstructure:"no_results"   validate:"required"`
	Help        string `mapstructure:"help"         validate:"required"`
}

// TaskConfig describes one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
