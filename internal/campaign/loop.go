package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"affbot/internal/configapi"
	"affbot/pkg/logx"
)

// Loop drives the recurring dispatch cycle: fetch config, dispatch every
// template, push a status summary, sleep, repeat. No failure inside a cycle
// is allowed to end the loop; only ctx cancellation does.
type Loop struct {
	source     ConfigSource
	reporter   Reporter
	dispatcher *Dispatcher
	log        logx.Logger

	mu       sync.Mutex
	active   time.Duration
	idle     time.Duration
	cooldown time.Duration
}

func NewLoop(source ConfigSource, reporter Reporter, dispatcher *Dispatcher, log logx.Logger) *Loop {
	return &Loop{
		source:     source,
		reporter:   reporter,
		dispatcher: dispatcher,
		log:        log,
		active:     5 * time.Minute,
		idle:       60 * time.Second,
		cooldown:   60 * time.Second,
	}
}

// SetIntervals applies new cycle cadence, effective from the next sleep.
func (l *Loop) SetIntervals(active, idle, cooldown time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if active > 0 {
		l.active = active
	}
	if idle > 0 {
		l.idle = idle
	}
	if cooldown > 0 {
		l.cooldown = cooldown
	}
}

func (l *Loop) intervals() (active, idle, cooldown time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active, l.idle, l.cooldown
}

// Run executes cycles until ctx is canceled. Always returns nil: the loop
// has no fatal condition of its own.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("polling loop started")
	for {
		sleep := l.safeCycle(ctx)

		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			l.log.Info("polling loop stopped")
			return nil
		case <-t.C:
		}
	}
}

// safeCycle runs one cycle with the loop-boundary failure handling: an error
// or panic is logged (console + best-effort remote activity) and answered
// with the cooldown interval instead of crashing.
func (l *Loop) safeCycle(ctx context.Context) (sleep time.Duration) {
	_, _, cooldown := l.intervals()

	defer func() {
		if r := recover(); r != nil {
			sleep = cooldown
			l.log.Error("cycle panicked", logx.Any("panic", r))
			l.reporter.LogActivity(ctx, configapi.ActivityError, map[string]any{
				"error_message": fmt.Sprint(r),
				"success":       false,
			})
		}
	}()

	sleep, err := l.cycle(ctx)
	if err != nil {
		l.log.Error("cycle failed", logx.Err(err))
		l.reporter.LogActivity(ctx, configapi.ActivityError, map[string]any{
			"error_message": err.Error(),
			"success":       false,
		})
		return cooldown
	}
	return sleep
}

// cycle is one full pass: fetch config (default fallback on failure), skip
// when inactive, dispatch every template in list order, push a status
// summary. Returns how long to sleep before the next pass.
func (l *Loop) cycle(ctx context.Context) (time.Duration, error) {
	active, idle, _ := l.intervals()

	cfg, err := l.source.FetchConfig(ctx)
	if err != nil {
		l.log.Warn("config fetch failed; using default config", logx.Err(err))
		cfg = configapi.DefaultConfig()
	}

	if !cfg.Active {
		l.log.Info("bot is paused, waiting")
		return idle, nil
	}

	templates := cfg.MessageTemplates
	if len(templates) == 0 {
		l.log.Info("no message templates configured yet")
	}

	totalSent, totalFailed := 0, 0
	for _, tpl := range templates {
		if ctx.Err() != nil {
			return active, nil
		}
		stats := l.dispatcher.Run(ctx, tpl, cfg)
		totalSent += stats.Sent
		totalFailed += stats.Failed
	}

	l.reporter.UpdateStatus(ctx, "active", "Bot running smoothly", map[string]any{
		"messages_sent":        totalSent,
		"messages_failed":      totalFailed,
		"templates_configured": len(templates),
	})
	l.log.Info("cycle complete",
		logx.Int("templates", len(templates)),
		logx.Int("sent", totalSent),
		logx.Int("failed", totalFailed),
		logx.Duration("next_in", active),
	)
	return active, nil
}
