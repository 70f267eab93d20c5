package campaign

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"affbot/internal/platform"
	"affbot/pkg/logx"
)

// Limiter spaces out direct messages per recipient. Each recipient gets an
// independent token bucket (burst 1, refill every minDelay): the first send
// is immediate, later sends wait out the remaining delay. The token is taken
// before the delivery attempt, so a failed send still consumes its slot and
// can't fuel a retry storm.
//
// Recipients never block each other; only repeated sends to the same
// recipient are throttled.
type Limiter struct {
	sender DMSender
	log    logx.Logger

	mu       sync.Mutex
	minDelay time.Duration
	per      map[string]*recipientSlot
}

type recipientSlot struct {
	lim     *rate.Limiter
	touched time.Time
}

func NewLimiter(minDelay time.Duration, sender DMSender, log logx.Logger) *Limiter {
	if minDelay <= 0 {
		minDelay = time.Second
	}
	return &Limiter{
		sender:   sender,
		log:      log,
		minDelay: minDelay,
		per:      map[string]*recipientSlot{},
	}
}

// SetMinDelay applies a new per-recipient spacing, including to recipients
// already tracked.
func (l *Limiter) SetMinDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minDelay = d
	for _, s := range l.per {
		s.lim.SetLimit(rate.Every(d))
	}
}

func (l *Limiter) slot(recipientID string) *recipientSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.per[recipientID]
	if s == nil {
		s = &recipientSlot{lim: rate.NewLimiter(rate.Every(l.minDelay), 1)}
		l.per[recipientID] = s
	}
	s.touched = time.Now()
	return s
}

// Send delivers content to the member, waiting out the recipient's rate
// limit first. Failures come back as (false, reason) and are never
// propagated as errors:
//   - DMs disabled           -> "User has DMs disabled"
//   - transport/protocol     -> "HTTP Error: <detail>"
//   - anything else          -> "Unknown error: <detail>"
func (l *Limiter) Send(ctx context.Context, m platform.Member, content string, buttons []platform.Button) (bool, string) {
	s := l.slot(m.ID)

	// Waiting happens outside the map lock so other recipients proceed.
	if err := s.lim.Wait(ctx); err != nil {
		return false, "Unknown error: " + err.Error()
	}

	err := l.sender.SendDM(ctx, m.ID, content, buttons)
	if err == nil {
		return true, ""
	}

	switch {
	case errors.Is(err, platform.ErrDMsDisabled):
		return false, "User has DMs disabled"
	case isRESTError(err):
		return false, "HTTP Error: " + err.Error()
	default:
		return false, "Unknown error: " + err.Error()
	}
}

func isRESTError(err error) bool {
	var rerr *platform.RESTError
	return errors.As(err, &rerr)
}

// Prune drops recipient slots idle longer than the given window and returns
// how many were removed. Keeps the per-recipient map bounded by the active
// recipient set instead of growing for the process lifetime.
func (l *Limiter) Prune(idleFor time.Duration) int {
	cutoff := time.Now().Add(-idleFor)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, s := range l.per {
		if s.touched.Before(cutoff) {
			delete(l.per, id)
			removed++
		}
	}
	if removed > 0 {
		l.log.Debug("pruned idle rate-limit slots", logx.Int("removed", removed), logx.Int("remaining", len(l.per)))
	}
	return removed
}

// Tracked reports how many recipients currently hold limiter state.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.per)
}
