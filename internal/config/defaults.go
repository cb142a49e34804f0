package config

import "time"

// Default values for optional configuration parameters.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 0.7
	DefaultGeminiTimeout     = 2 * time.Minute
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2 * time.Second

	DefaultDBPath        = "envo.db"
	DefaultRetentionDays = 30
	DefaultDBOpTimeout   = 15 * time.Second

	DefaultCommandPrefix      = "."
	DefaultContextMessages    = 5
	DefaultSearchResults      = 5
	DefaultSearchPreviewChars = 100
	DefaultRateLimitPerMin    = 10
)

// Default user-visible messages.
const (
	DefaultWorkingMessage     = "🤔 Thinking..."
	DefaultRateLimitedMessage = "⏰ Too many requests. Please wait a moment before sending more commands."
	DefaultNoResultsMessage   = "🔍 No matching messages found."
	DefaultHelpMessage        = `Envo commands:
.ask [question] — answer a question (reply to a message to ask about it)
.summarize | .translate | .rewrite | .improve | .expand | .condense — transform text
.analyze | .explain — examine content
.search <query> — search stored chat history
.roleplay <persona> — adopt a persona for answers
.clear — clear persona and context
.help — show this message`
)

func setDefaults() map[string]any {
	return map[string]any{
		"log.level": DefaultLogLevel,
		"log.json":  DefaultLogJSON,

		// Credentials have no usable default; registering the keys lets
		// ENVO_* environment variables bind without a config file.
		"telegram.token":    "",
		"telegram.owner_id": 0,
		"gemini.api_key":    "",

		"gemini.model":       DefaultGeminiModel,
		"gemini.temperature": DefaultGeminiTemperature,
		"gemini.timeout":     DefaultGeminiTimeout,
		"gemini.max_retries": DefaultGeminiMaxRetries,
		"gemini.retry_delay": DefaultGeminiRetryDelay,

		"database.path":           DefaultDBPath,
		"database.retention_days": DefaultRetentionDays,
		"database.op_timeout":     DefaultDBOpTimeout,

		"commands.prefix":                DefaultCommandPrefix,
		"commands.context_messages":      DefaultContextMessages,
		"commands.search_results":        DefaultSearchResults,
		"commands.search_preview_chars":  DefaultSearchPreviewChars,
		"commands.rate_limit_per_minute": DefaultRateLimitPerMin,

		"messages.working":      DefaultWorkingMessage,
		"messages.rate_limited": DefaultRateLimitedMessage,
		"messages.no_results":   DefaultNoResultsMessage,
		"messages.help":         DefaultHelpMessage,

		"scheduler.tasks.retention_sweep.enabled":  true,
		"scheduler.tasks.retention_sweep.schedule": "0 0 4 * * *",
		"scheduler.tasks.sql_maintenance.enabled":  true,
		"scheduler.tasks.sql_maintenance.schedule": "0 30 4 * * 0",
	}
}
