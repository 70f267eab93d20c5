package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"affbot/internal/configapi"
	"affbot/internal/platform"
	"affbot/pkg/logx"
)

// Dispatcher orchestrates one campaign run: resolve the audience, compose
// per-recipient content, deliver through the rate limiter, and report every
// outcome. Failures stay inside their boundary: a bad recipient never aborts
// the batch, and a bad run never reaches the caller.
type Dispatcher struct {
	roster   Roster
	limiter  *Limiter
	reporter Reporter
	log      logx.Logger

	apiBase string
	now     func() time.Time
}

func NewDispatcher(roster Roster, limiter *Limiter, reporter Reporter, apiBase string, log logx.Logger) *Dispatcher {
	return &Dispatcher{
		roster:   roster,
		limiter:  limiter,
		reporter: reporter,
		log:      log,
		apiBase:  apiBase,
		now:      time.Now,
	}
}

// Run dispatches one template to its resolved audience and returns run stats.
func (d *Dispatcher) Run(ctx context.Context, tpl configapi.Template, cfg *configapi.BotConfig) RunStats {
	stats := RunStats{RunID: uuid.NewString(), Template: tpl.Name}
	log := d.log.With(logx.String("run", stats.RunID), logx.String("template", tpl.Name))

	audience, err := d.collectAudience(ctx, cfg)
	if err != nil {
		log.Error("audience collection failed", logx.Err(err))
		d.reporter.LogActivity(ctx, configapi.ActivityError, map[string]any{
			"error_message": err.Error(),
			"success":       false,
			"run_id":        stats.RunID,
		})
		return stats
	}
	stats.Targeted = len(audience)
	log.Info("audience resolved", logx.Int("targeted", stats.Targeted))

	roleTargeted := FirstEnabledRoleName(cfg.TargetRoles)

	for _, m := range audience {
		if ctx.Err() != nil {
			log.Warn("run interrupted", logx.Int("sent", stats.Sent), logx.Int("failed", stats.Failed))
			return stats
		}
		if d.deliver(ctx, log, tpl, cfg, m, roleTargeted, stats.RunID) {
			stats.Sent++
		} else {
			stats.Failed++
		}
	}

	if stats.Failed > 0 {
		log.Warn("run finished with failures", logx.Int("sent", stats.Sent), logx.Int("failed", stats.Failed))
	} else {
		log.Info("run finished", logx.Int("sent", stats.Sent))
	}
	return stats
}

func (d *Dispatcher) collectAudience(ctx context.Context, cfg *configapi.BotConfig) ([]platform.Member, error) {
	groups, err := d.roster.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate groups: %w", err)
	}
	var audience []platform.Member
	for _, g := range groups {
		audience = append(audience, ResolveAudience(g, cfg.TargetRoles)...)
	}
	return audience, nil
}

// deliver handles one recipient end to end. Panics from composition or the
// platform layer are confined here so the rest of the batch proceeds.
func (d *Dispatcher) deliver(ctx context.Context, log logx.Logger, tpl configapi.Template, cfg *configapi.BotConfig, m platform.Member, roleTargeted, runID string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			log.Error("recipient processing panicked", logx.String("user", m.ID), logx.Any("panic", r))
			d.reporter.LogActivity(ctx, configapi.ActivityError, map[string]any{
				"error_message": fmt.Sprint(r),
				"success":       false,
				"run_id":        runID,
			})
		}
	}()

	variant := SelectVariant(m.ID, tpl.ABTests)
	content := RenderTemplate(tpl.Content, m, cfg.AffiliateID)
	buttons := BuildButtons(d.apiBase, tpl, cfg, d.now())

	sent, reason := d.limiter.Send(ctx, m, content, buttons)

	fields := map[string]any{
		"user_id":       m.ID,
		"message_sent":  content,
		"role_targeted": roleTargeted,
		"success":       sent,
		"run_id":        runID,
	}
	if !sent {
		fields["error_message"] = reason
	}
	if variant != "" {
		fields["variant"] = variant
	}
	d.reporter.LogActivity(ctx, configapi.ActivityMessageSent, fields)

	if sent {
		log.Debug("dm sent", logx.String("user", m.DisplayName), logx.String("variant", variant))
	} else {
		log.Warn("dm failed", logx.String("user", m.DisplayName), logx.String("reason", reason))
	}
	return sent
}
