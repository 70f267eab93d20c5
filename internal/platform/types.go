package platform

import (
	"context"
	"errors"
	"fmt"
)

// Role is one group role as seen on the chat platform.
type Role struct {
	ID   string
	Name string
}

// Member is a read-only view of a group member. The engine never mutates
// platform state; it only reads what it needs for rendering and targeting.
type Member struct {
	ID          string
	DisplayName string
	Mention     string
	// GroupName is the name of the group the member was enumerated from.
	// Empty when the member has no group context.
	GroupName string
	Roles     []Role
}

// Group is a server/guild with its full member roster, in roster order.
type Group struct {
	ID      string
	Name    string
	Members []Member
}

// Button is a link button attached to a direct message.
type Button struct {
	Label string
	URL   string
	Style string
}

// MemberUpdate describes a membership change observed on the platform.
// AddedRoles lists roles the member gained in this update (may be empty).
type MemberUpdate struct {
	Member     Member
	AddedRoles []Role
}

// ErrDMsDisabled is returned by SendDM when the recipient refuses direct messages.
var ErrDMsDisabled = errors.New("user has DMs disabled")

// RESTError is a transport/protocol failure from the platform API.
type RESTError struct {
	Status int
	Detail string
}

func (e *RESTError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("status %d", e.Status)
}

// Adapter is the chat-platform surface the campaign engine consumes.
type Adapter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Groups enumerates every group the bot is in, with member rosters
	// including role lists.
	Groups(ctx context.Context) ([]Group, error)

	// SendDM delivers a direct message with optional link buttons.
	// Returns ErrDMsDisabled or *RESTError for the known failure classes.
	SendDM(ctx context.Context, memberID, content string, buttons []Button) error

	// OnMemberUpdate registers a callback invoked for membership changes.
	// Must be called before Start.
	OnMemberUpdate(fn func(MemberUpdate))
}
