package config

// Config is the local process configuration.
//
// Credentials never live here: the bot token always comes from the
// environment (see LoadEnv). The remote campaign configuration is fetched
// per poll cycle and is a separate thing entirely (internal/configapi).
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Poll controls the dispatch cycle cadence.
	Poll PollConfig `json:"poll"`

	// RateLimit controls per-recipient DM throttling.
	RateLimit RateLimitConfig `json:"ratelimit"`

	// Maintenance controls background housekeeping jobs.
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`

	// API points at the remote configuration/report backend.
	// Env vars API_BASE_URL and BOT_APP_ID take precedence when set.
	API APIConfig `json:"api"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PollConfig holds the loop cadence. All durations are Go duration strings
// (e.g. "60s", "5m"). Zero/omitted fields fall back to defaults.
type PollConfig struct {
	// ActiveInterval is the sleep between full dispatch cycles.
	ActiveInterval string `json:"active_interval,omitempty"`
	// IdleInterval is the sleep while the remote config is inactive.
	IdleInterval string `json:"idle_interval,omitempty"`
	// ErrorCooldown is the sleep after a failed cycle.
	ErrorCooldown string `json:"error_cooldown,omitempty"`
}

type RateLimitConfig struct {
	// MinDelay is the minimum spacing between two DMs to the same recipient.
	MinDelay string `json:"min_delay,omitempty"`
	// PruneIdleAfter drops per-recipient limiter state idle longer than this.
	PruneIdleAfter string `json:"prune_idle_after,omitempty"`
}

type MaintenanceConfig struct {
	// PruneSchedule is a cron spec (robfig/cron, "@every 10m" style works).
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

type APIConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	BotID   string `json:"bot_id,omitempty"`
}
