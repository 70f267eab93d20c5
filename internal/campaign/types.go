package campaign

import (
	"context"

	"affbot/internal/configapi"
	"affbot/internal/platform"
)

// Reporter pushes outcomes to the remote backend. Both methods are
// best-effort and must never fail the caller.
type Reporter interface {
	LogActivity(ctx context.Context, activityType string, fields map[string]any)
	UpdateStatus(ctx context.Context, status, message string, stats map[string]any)
}

// ConfigSource fetches the remote campaign configuration.
type ConfigSource interface {
	FetchConfig(ctx context.Context) (*configapi.BotConfig, error)
}

// Roster enumerates groups with member rosters.
type Roster interface {
	Groups(ctx context.Context) ([]platform.Group, error)
}

// DMSender delivers one direct message.
type DMSender interface {
	SendDM(ctx context.Context, memberID, content string, buttons []platform.Button) error
}

// RunStats summarizes one campaign run (one template over its audience).
type RunStats struct {
	RunID    string
	Template string
	Targeted int
	Sent     int
	Failed   int
}
