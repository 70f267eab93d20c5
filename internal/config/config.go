package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults mirror the cadence the dispatch engine has always run at.
const (
	DefaultActiveInterval = 5 * time.Minute
	DefaultIdleInterval   = 60 * time.Second
	DefaultErrorCooldown  = 60 * time.Second
	DefaultMinDelay       = 1 * time.Second
	DefaultPruneIdleAfter = 10 * time.Minute
	DefaultPruneSchedule  = "@every 10m"
)

// Env is everything read from the process environment at startup.
type Env struct {
	// BotToken authenticates against the chat platform. Required.
	BotToken string
	// BotID identifies this bot to the remote configuration backend.
	BotID string
	// APIBaseURL is the remote configuration backend base URL.
	APIBaseURL string
}

// LoadEnv reads credentials and endpoints from the environment.
// A missing bot token is a fatal startup condition for the caller.
func LoadEnv() (Env, error) {
	e := Env{
		BotToken:   strings.TrimSpace(os.Getenv("DISCORD_BOT_TOKEN")),
		BotID:      strings.TrimSpace(os.Getenv("BOT_APP_ID")),
		APIBaseURL: strings.TrimSpace(os.Getenv("API_BASE_URL")),
	}
	if e.BotToken == "" {
		return Env{}, fmt.Errorf("DISCORD_BOT_TOKEN environment variable is required")
	}
	return e, nil
}

// Default returns the built-in local config used when no config file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}

// Resolve merges env over file config for the API endpoint settings.
func (c *Config) Resolve(env Env) APIConfig {
	api := c.API
	if env.APIBaseURL != "" {
		api.BaseURL = env.APIBaseURL
	}
	if env.BotID != "" {
		api.BotID = env.BotID
	}
	return api
}

// Validate rejects configs that would break the running loop if hot-applied.
func Validate(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := ParseDurationField("poll.active_interval", cfg.Poll.ActiveInterval); err != nil {
		return err
	}
	if _, err := ParseDurationField("poll.idle_interval", cfg.Poll.IdleInterval); err != nil {
		return err
	}
	if _, err := ParseDurationField("poll.error_cooldown", cfg.Poll.ErrorCooldown); err != nil {
		return err
	}
	if _, err := ParseDurationField("ratelimit.min_delay", cfg.RateLimit.MinDelay); err != nil {
		return err
	}
	if _, err := ParseDurationField("ratelimit.prune_idle_after", cfg.RateLimit.PruneIdleAfter); err != nil {
		return err
	}
	return nil
}

// PollIntervals returns the cycle cadence with defaults applied.
// Invalid strings were rejected at load/validate time, so errors here are
// treated as "use the default".
func (c *Config) PollIntervals() (active, idle, cooldown time.Duration) {
	active, _ = ParseDurationOrDefault("poll.active_interval", c.Poll.ActiveInterval, DefaultActiveInterval)
	idle, _ = ParseDurationOrDefault("poll.idle_interval", c.Poll.IdleInterval, DefaultIdleInterval)
	cooldown, _ = ParseDurationOrDefault("poll.error_cooldown", c.Poll.ErrorCooldown, DefaultErrorCooldown)
	return active, idle, cooldown
}

// RateLimits returns the per-recipient delay and prune window with defaults applied.
func (c *Config) RateLimits() (minDelay, pruneIdleAfter time.Duration) {
	minDelay, _ = ParseDurationOrDefault("ratelimit.min_delay", c.RateLimit.MinDelay, DefaultMinDelay)
	pruneIdleAfter, _ = ParseDurationOrDefault("ratelimit.prune_idle_after", c.RateLimit.PruneIdleAfter, DefaultPruneIdleAfter)
	return minDelay, pruneIdleAfter
}

// PruneSchedule returns the cron spec for limiter pruning.
func (c *Config) PruneSchedule() string {
	if s := strings.TrimSpace(c.Maintenance.PruneSchedule); s != "" {
		return s
	}
	return DefaultPruneSchedule
}
