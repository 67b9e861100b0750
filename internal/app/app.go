// Package app wires the agent together: config, logging, the reminder
// pipeline and the HTTP surface, under one supervisor with hot reload.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ronbot/internal/alert"
	"ronbot/internal/config"
	"ronbot/internal/delivery"
	"ronbot/internal/eventbus"
	"ronbot/internal/history"
	"ronbot/internal/remind"
	"ronbot/internal/runtime/supervisor"
	"ronbot/internal/server"
	logx "ronbot/pkg/logx"
	"ronbot/pkg/systemd"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	alert *alert.Telegram

	bus   *eventbus.Bus
	store *remind.Store
	hist  history.Store

	client  *delivery.Client
	sched   *remind.Service
	rec     *history.Recorder
	handler *server.Handler
	serv    *server.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	sender := alert.NewTelegram(mapAlertConfig(cfg))
	logSvc, log := logx.New(mapLogConfig(cfg), sender)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()
	store := remind.NewStore()

	// Delivery history (optional)
	hcfg, err := mapHistoryConfig(cfg)
	if err != nil {
		return nil, err
	}
	hist, err := history.Open(hcfg, log.With(logx.String("comp", "history")))
	if err != nil {
		return nil, err
	}
	if hist != nil {
		log.Info("history enabled", logx.String("driver", hcfg.Driver))
	}

	dcfg, err := mapDeliveryConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := delivery.New(dcfg, log.With(logx.String("comp", "delivery")))

	sched := remind.New(mapSchedulerConfig(cfg), store, client, bus,
		log.With(logx.String("comp", "scheduler")))

	handler := server.NewHandler(mapHandlerConfig(cfg), store, sched, hist, nil, bus,
		log.With(logx.String("comp", "server")))

	scfg, err := mapServerConfig(cfg)
	if err != nil {
		return nil, err
	}
	serv := server.New(scfg, handler, log.With(logx.String("comp", "server")))

	rec := history.NewRecorder(hist, bus, log.With(logx.String("comp", "history")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		alert:   sender,
		bus:     bus,
		store:   store,
		hist:    hist,
		client:  client,
		sched:   sched,
		rec:     rec,
		handler: handler,
		serv:    serv,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.handler.SetSupervisor(a.sup)

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	a.sup.Go("history.record", a.rec.Run)

	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}

	// The server goes up last: once it accepts requests the pipeline
	// behind it is already running.
	if err := a.serv.Start(a.sup.Context()); err != nil {
		return err
	}

	// Optional: log events for observability/debug (components also subscribe themselves).
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		// Track last applied config to generate a safe diff summary for logs.
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
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
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", a.cfgm.Watch)

	// Under a Type=notify unit, report readiness and feed the watchdog.
	if ok, err := systemd.NotifyReady(); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("systemd notified ready")
	}
	if iv, err := systemd.WatchdogInterval(); err == nil && iv > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			systemd.Watchdog(c, iv)
		})
		a.log.Info("systemd watchdog enabled", logx.Duration("interval", iv))
	}

	a.log.Info("app started")
	return nil
}

// applyConfig pushes one committed config into the running services.
// Validation already happened; anything that still fails here keeps its
// previous settings.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		if s == "history" {
			a.log.Warn("history config changed; restart required for changes to take effect")
			break
		}
	}

	// Logging first so the remaining steps report at the new level.
	a.alert.Apply(mapAlertConfig(newCfg))
	a.logs.Apply(mapLogConfig(newCfg))

	// Delivery client (live; in-flight pushes keep their deadline).
	if dcfg, err := mapDeliveryConfig(newCfg); err != nil {
		a.log.Warn("invalid delivery config; keeping previous", logx.Any("err", err))
	} else {
		a.client.Apply(dcfg)
	}

	// Scheduler (live; cron restarts internally on sweep/timezone change).
	prevEnabled := a.sched.Enabled()
	scfg := mapSchedulerConfig(newCfg)
	a.sched.Apply(scfg)
	if prevEnabled && !scfg.Enabled {
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	} else if !prevEnabled && scfg.Enabled {
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}

	// HTTP surface (restarts only when the listener config changed).
	a.handler.Apply(mapHandlerConfig(newCfg))
	if svcfg, err := mapServerConfig(newCfg); err != nil {
		a.log.Warn("invalid server config; keeping previous", logx.Any("err", err))
	} else {
		a.serv.Apply(ctx, svcfg)
	}

	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.NotifyStopping()

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
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
				a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// Contract: fn MUST honor stepCtx and return promptly. If it doesn't, log a leak signal.
			elapsed := time.Since(start)
			a.log.Warn(
				"stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Duration("elapsed", elapsed),
			)
			// Leak logging: observe when/if the step eventually finishes.
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.String("err", err.Error()), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Close the listener first so no new reminders arrive mid-shutdown,
	// then wind down the sweep. Claimed-but-undelivered reminders are
	// abandoned, consistent with at-most-once delivery.
	step("server", 3*time.Second, func(c context.Context) error { a.serv.Stop(c); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("history", 1*time.Second, func(c context.Context) error {
		if a.hist != nil {
			return a.hist.Close()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (config watch/reload, recorder, etc.)
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
