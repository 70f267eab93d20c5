package configapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"affbot/pkg/logx"
)

const userAgent = "affbot/1.0"

type Config struct {
	BaseURL  string
	BotID    string
	BotToken string
}

// Client talks to the remote configuration/report backend. One underlying
// HTTP client is shared across all calls for the process lifetime and
// released exactly once via Close.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger

	closeOnce sync.Once

	// now is swappable for tests.
	now func() time.Time
}

func New(cfg Config, log logx.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
		now:  time.Now,
	}
}

// BaseURL exposes the backend base URL for trackable-link construction.
func (c *Client) BaseURL() string { return strings.TrimRight(c.cfg.BaseURL, "/") }

// Close releases the shared connection pool. Safe to call more than once;
// only the first call does anything.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.http.CloseIdleConnections()
		c.log.Debug("client closed")
	})
}

// call POSTs a JSON payload to the named remote function and returns the raw
// response body. Non-200 statuses and transport failures both come back as
// errors; callers decide how to degrade.
func (c *Client) call(ctx context.Context, fn string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode payload: %w", fn, err)
	}

	url := c.BaseURL() + "/functions/" + fn
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s: status %d", fn, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", fn, err)
	}
	return raw, nil
}

// FetchConfig retrieves the campaign configuration for this bot.
func (c *Client) FetchConfig(ctx context.Context) (*BotConfig, error) {
	raw, err := c.call(ctx, "getBotConfig", map[string]any{
		"bot_id":    c.cfg.BotID,
		"bot_token": c.cfg.BotToken,
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Success bool      `json:"success"`
		Data    BotConfig `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("getBotConfig: decode: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("getBotConfig: backend reported failure")
	}
	return &envelope.Data, nil
}

// LogActivity appends one event to the remote activity log. Best-effort:
// failures are logged locally and never surfaced to dispatch code.
func (c *Client) LogActivity(ctx context.Context, activityType string, fields map[string]any) {
	payload := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		payload[k] = v
	}
	payload["bot_id"] = c.cfg.BotID
	payload["activity_type"] = activityType
	payload["timestamp"] = c.now().UTC().Format(time.RFC3339)

	if _, err := c.call(ctx, "logBotActivity", payload); err != nil {
		c.log.Warn("activity log failed", logx.String("type", activityType), logx.Err(err))
		return
	}
	c.log.Debug("activity logged", logx.String("type", activityType))
}

// UpdateStatus pushes a status summary to the backend. Best-effort like
// LogActivity.
func (c *Client) UpdateStatus(ctx context.Context, status, message string, stats map[string]any) {
	payload := map[string]any{
		"bot_id": c.cfg.BotID,
		"status": status,
	}
	if message != "" {
		payload["message"] = message
	}
	if stats == nil {
		stats = map[string]any{}
	}
	payload["stats"] = stats

	if _, err := c.call(ctx, "updateBotStatus", payload); err != nil {
		c.log.Warn("status update failed", logx.String("status", status), logx.Err(err))
		return
	}
	c.log.Debug("status updated", logx.String("status", status))
}
