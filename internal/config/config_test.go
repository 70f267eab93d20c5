package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty is zero", raw: "", want: 0},
		{name: "seconds", raw: "45s", want: 45 * time.Second},
		{name: "minutes", raw: "5m", want: 5 * time.Minute},
		{name: "garbage", raw: "soon", wantErr: true},
		{name: "negative", raw: "-3s", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationField("test.field", tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationField(%q): expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationField(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestPollIntervalDefaults(t *testing.T) {
	t.Parallel()
	cfg := Default()
	active, idle, cooldown := cfg.PollIntervals()
	if active != DefaultActiveInterval || idle != DefaultIdleInterval || cooldown != DefaultErrorCooldown {
		t.Fatalf("defaults = %v/%v/%v", active, idle, cooldown)
	}

	cfg.Poll = PollConfig{ActiveInterval: "2m", IdleInterval: "30s", ErrorCooldown: "15s"}
	active, idle, cooldown = cfg.PollIntervals()
	if active != 2*time.Minute || idle != 30*time.Second || cooldown != 15*time.Second {
		t.Fatalf("configured = %v/%v/%v", active, idle, cooldown)
	}
}

func TestRateLimitDefaults(t *testing.T) {
	t.Parallel()
	minDelay, prune := Default().RateLimits()
	if minDelay != DefaultMinDelay || prune != DefaultPruneIdleAfter {
		t.Fatalf("defaults = %v/%v", minDelay, prune)
	}
}

func TestValidateRejectsBadDurations(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Poll.ActiveInterval = "whenever"
	if err := Validate(context.Background(), cfg); err == nil {
		t.Fatal("expected validation error")
	}

	cfg = Default()
	cfg.RateLimit.MinDelay = "-1s"
	if err := Validate(context.Background(), cfg); err == nil {
		t.Fatal("expected validation error")
	}

	if err := Validate(context.Background(), Default()); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestManagerParsesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
logging:
  level: debug
  console: true
poll:
  active_interval: 2m
  idle_interval: 30s
ratelimit:
  min_delay: 500ms
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	active, idle, _ := cfg.PollIntervals()
	if active != 2*time.Minute || idle != 30*time.Second {
		t.Fatalf("intervals = %v/%v", active, idle)
	}
	minDelay, _ := cfg.RateLimits()
	if minDelay != 500*time.Millisecond {
		t.Fatalf("min delay = %v", minDelay)
	}
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"pollling": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestManagerMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.Console {
		t.Fatalf("defaults = %+v", cfg.Logging)
	}
}

func TestLoadEnvRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	if _, err := LoadEnv(); err == nil {
		t.Fatal("expected error when token missing")
	}

	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("BOT_APP_ID", "bot-9")
	t.Setenv("API_BASE_URL", "https://api.example.com")
	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if env.BotToken != "tok" || env.BotID != "bot-9" || env.APIBaseURL != "https://api.example.com" {
		t.Fatalf("env = %+v", env)
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.API = APIConfig{BaseURL: "https://file.example.com", BotID: "file-bot"}

	api := cfg.Resolve(Env{APIBaseURL: "https://env.example.com"})
	if api.BaseURL != "https://env.example.com" {
		t.Fatalf("base url = %q, want env value", api.BaseURL)
	}
	if api.BotID != "file-bot" {
		t.Fatalf("bot id = %q, want file value kept", api.BotID)
	}
}
