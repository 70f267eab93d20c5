package configapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"affbot/pkg/logx"
)

type capturedCall struct {
	Path    string
	Payload map[string]any
}

// newBackend spins up a fake remote backend that records calls and answers
// with the given status/body.
func newBackend(t *testing.T, status int, body string) (*httptest.Server, func() []capturedCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []capturedCall

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)

		mu.Lock()
		calls = append(calls, capturedCall{Path: r.URL.Path, Payload: payload})
		mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []capturedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedCall(nil), calls...)
	}
}

func TestFetchConfig(t *testing.T) {
	t.Parallel()
	srv, calls := newBackend(t, http.StatusOK, `{
		"success": true,
		"data": {
			"active": true,
			"affiliate_id": "aff-7",
			"message_templates": [{"name": "promo", "content": "hi {username}"}],
			"target_roles": [{"role_id": "vip", "role_name": "VIP", "enabled": true}],
			"affiliate_links": [{"name": "main_affiliate_link", "url_template": "https://x.example.com", "enabled": true}]
		}
	}`)

	c := New(Config{BaseURL: srv.URL, BotID: "bot-1", BotToken: "tok"}, logx.Nop())
	defer c.Close()

	cfg, err := c.FetchConfig(context.Background())
	if err != nil {
		t.Fatalf("FetchConfig: %v", err)
	}
	if !cfg.Active || cfg.AffiliateID != "aff-7" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.MessageTemplates) != 1 || cfg.MessageTemplates[0].Name != "promo" {
		t.Fatalf("templates = %+v", cfg.MessageTemplates)
	}

	got := calls()
	if len(got) != 1 || got[0].Path != "/functions/getBotConfig" {
		t.Fatalf("calls = %+v", got)
	}
	if got[0].Payload["bot_id"] != "bot-1" || got[0].Payload["bot_token"] != "tok" {
		t.Fatalf("payload = %+v", got[0].Payload)
	}
}

func TestFetchConfigFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "non-200 status", status: http.StatusBadGateway, body: `{}`},
		{name: "backend reports failure", status: http.StatusOK, body: `{"success": false}`},
		{name: "garbage body", status: http.StatusOK, body: `not json`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newBackend(t, tt.status, tt.body)
			c := New(Config{BaseURL: srv.URL, BotID: "b", BotToken: "t"}, logx.Nop())
			defer c.Close()

			if _, err := c.FetchConfig(context.Background()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFetchConfigTransportError(t *testing.T) {
	t.Parallel()
	srv, _ := newBackend(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, BotID: "b", BotToken: "t"}, logx.Nop())
	defer c.Close()

	if _, err := c.FetchConfig(context.Background()); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestLogActivityStampsUTCTimestamp(t *testing.T) {
	t.Parallel()
	srv, calls := newBackend(t, http.StatusOK, `{"success": true}`)

	c := New(Config{BaseURL: srv.URL, BotID: "bot-1", BotToken: "t"}, logx.Nop())
	defer c.Close()
	fixed := time.Date(2024, 6, 1, 20, 30, 0, 0, time.FixedZone("PST", -8*3600))
	c.now = func() time.Time { return fixed }

	c.LogActivity(context.Background(), ActivityMessageSent, map[string]any{
		"user_id": "7",
		"success": true,
	})

	got := calls()
	if len(got) != 1 || got[0].Path != "/functions/logBotActivity" {
		t.Fatalf("calls = %+v", got)
	}
	p := got[0].Payload
	if p["bot_id"] != "bot-1" || p["activity_type"] != ActivityMessageSent || p["user_id"] != "7" {
		t.Fatalf("payload = %+v", p)
	}
	ts, _ := p["timestamp"].(string)
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t.Fatalf("timestamp %q not RFC3339: %v", ts, err)
	}
	if _, offset := parsed.Zone(); offset != 0 {
		t.Fatalf("timestamp %q not UTC", ts)
	}
	if !parsed.Equal(fixed) {
		t.Fatalf("timestamp = %v, want %v", parsed, fixed)
	}
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()
	srv, calls := newBackend(t, http.StatusOK, `{"success": true}`)

	c := New(Config{BaseURL: srv.URL, BotID: "bot-1", BotToken: "t"}, logx.Nop())
	defer c.Close()

	c.UpdateStatus(context.Background(), "active", "Bot running smoothly", map[string]any{"messages_sent": 3})

	got := calls()
	if len(got) != 1 || got[0].Path != "/functions/updateBotStatus" {
		t.Fatalf("calls = %+v", got)
	}
	p := got[0].Payload
	if p["status"] != "active" || p["message"] != "Bot running smoothly" {
		t.Fatalf("payload = %+v", p)
	}
	stats, _ := p["stats"].(map[string]any)
	if stats["messages_sent"] != float64(3) {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	c := New(Config{BaseURL: "http://127.0.0.1:0"}, logx.Nop())
	c.Close()
	c.Close() // must not panic or double-release
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	if !cfg.Active {
		t.Fatal("default config must be active")
	}
	if cfg.AffiliateID != "default_affiliate" {
		t.Fatalf("affiliate id = %q", cfg.AffiliateID)
	}
	if len(cfg.MessageTemplates) != 0 || len(cfg.TargetRoles) != 0 || len(cfg.AffiliateLinks) != 0 {
		t.Fatalf("default config not empty: %+v", cfg)
	}
}
