package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"affbot/internal/campaign"
	"affbot/internal/config"
	"affbot/internal/configapi"
	"affbot/internal/platform"
	"affbot/internal/platform/discord"
	"affbot/pkg/logx"
)

// App wires the whole engine together: local config, logging, the remote
// configuration client, the chat-platform adapter, and the campaign loop.
// Everything is an explicit field constructed once here; there are no
// package-level singletons.
type App struct {
	cfgPath string
	env     config.Env

	cfgm *Manager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter  platform.Adapter
	client   *configapi.Client
	reporter campaign.Reporter

	limiter    *campaign.Limiter
	dispatcher *campaign.Dispatcher
	loop       *campaign.Loop

	cron *cron.Cron
}

// Manager aliases the config manager to keep App fields tidy.
type Manager = config.Manager

func NewApp(cfgPath string, env config.Env) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	api := cfg.Resolve(env)
	if api.BaseURL == "" {
		// Not fatal: the loop degrades to idle cycles on the default config.
		log.Warn("api base_url not configured; remote calls will fail until set")
	}

	client := configapi.New(configapi.Config{
		BaseURL:  api.BaseURL,
		BotID:    api.BotID,
		BotToken: env.BotToken,
	}, logSvc.Logger().With(logx.String("comp", "configapi")))

	adapter, err := discord.New(discord.Config{Token: env.BotToken},
		logSvc.Logger().With(logx.String("comp", "discord")))
	if err != nil {
		return nil, err
	}

	minDelay, _ := cfg.RateLimits()
	limiter := campaign.NewLimiter(minDelay, adapter,
		logSvc.Logger().With(logx.String("comp", "ratelimit")))

	dispatcher := campaign.NewDispatcher(adapter, limiter, client, client.BaseURL(),
		logSvc.Logger().With(logx.String("comp", "dispatch")))

	loop := campaign.NewLoop(client, client, dispatcher,
		logSvc.Logger().With(logx.String("comp", "loop")))
	active, idle, cooldown := cfg.PollIntervals()
	loop.SetIntervals(active, idle, cooldown)

	return &App{
		cfgPath:    cfgPath,
		env:        env,
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		adapter:    adapter,
		client:     client,
		reporter:   client,
		limiter:    limiter,
		dispatcher: dispatcher,
		loop:       loop,
		cron:       cron.New(),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(config.Validate)

	// Membership events feed the audit log independent of the polling cycle.
	a.adapter.OnMemberUpdate(a.handleMemberUpdate)

	if err := a.adapter.Start(a.sup.Context()); err != nil {
		// Startup failure is fatal, but the backend still deserves to hear
		// about it before the process exits.
		a.reporter.LogActivity(ctx, configapi.ActivityShutdown, map[string]any{
			"success":       false,
			"error_message": err.Error(),
		})
		a.client.Close()
		return err
	}

	a.reporter.LogActivity(a.sup.Context(), configapi.ActivityStartup, map[string]any{"success": true})
	a.reporter.UpdateStatus(a.sup.Context(), "active", "Bot started successfully", nil)

	a.sup.Go("campaign.loop", a.loop.Run)
	a.sup.Go("config.watch", a.cfgm.Watch)

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(newCfg)
			}
		}
	})

	// Maintenance: keep limiter state bounded to the active recipient set.
	// Schedule changes require a restart; the prune window hot-applies.
	spec := a.cfgm.Get().PruneSchedule()
	if _, err := a.cron.AddFunc(spec, func() {
		_, idleAfter := a.cfgm.Get().RateLimits()
		a.limiter.Prune(idleAfter)
	}); err != nil {
		a.log.Warn("invalid prune schedule; pruning disabled", logx.String("spec", spec), logx.Err(err))
	}
	a.cron.Start()

	// Tell systemd we are up (no-op outside systemd units).
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Bool("supported", ok), logx.Err(err))
	}

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	active, idle, cooldown := cfg.PollIntervals()
	a.loop.SetIntervals(active, idle, cooldown)

	minDelay, _ := cfg.RateLimits()
	a.limiter.SetMinDelay(minDelay)

	a.log.Info("config reloaded",
		logx.Duration("active_interval", active),
		logx.Duration("idle_interval", idle),
		logx.Duration("min_delay", minDelay),
	)
}

// handleMemberUpdate logs one audit activity per newly gained role.
func (a *App) handleMemberUpdate(u platform.MemberUpdate) {
	ctx := context.Background()
	if a.sup != nil {
		ctx = a.sup.Context()
	}
	for _, role := range u.AddedRoles {
		a.log.Info("member gained role",
			logx.String("user", u.Member.DisplayName),
			logx.String("role", role.Name),
		)
		a.reporter.LogActivity(ctx, configapi.ActivityUserTargeted, map[string]any{
			"user_id":       u.Member.ID,
			"role_targeted": role.Name,
			"success":       true,
		})
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// Cancel the run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Best-effort shutdown report while the HTTP client is still open.
	a.reporter.LogActivity(ctx, configapi.ActivityShutdown, map[string]any{"success": true})
	a.reporter.UpdateStatus(ctx, "offline", "Bot stopped", nil)

	// Run a shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("cron", 2*time.Second, func(c context.Context) error {
		stopped := a.cron.Stop()
		select {
		case <-stopped.Done():
		case <-c.Done():
		}
		return nil
	})
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.client.Close()
	_ = a.logs.Close()

	a.log.Info("stopped")
	return nil
}
