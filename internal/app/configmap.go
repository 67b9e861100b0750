package app

import (
	"fmt"
	"strings"
	"time"

	"ronbot/internal/alert"
	"ronbot/internal/config"
	"ronbot/internal/delivery"
	"ronbot/internal/history"
	"ronbot/internal/remind"
	"ronbot/internal/server"
	logx "ronbot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapAlertConfig(cfg *config.Config) alert.Config {
	return alert.Config{
		Token:  strings.TrimSpace(cfg.Logging.Telegram.Token),
		ChatID: cfg.Logging.Telegram.ChatID,
	}
}

func mapServerConfig(cfg *config.Config) (server.Config, error) {
	rt, err := config.ParseDurationField("server.read_timeout", cfg.Server.ReadTimeout)
	if err != nil {
		return server.Config{}, err
	}
	wt, err := config.ParseDurationField("server.write_timeout", cfg.Server.WriteTimeout)
	if err != nil {
		return server.Config{}, err
	}
	it, err := config.ParseDurationField("server.idle_timeout", cfg.Server.IdleTimeout)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Addr:         strings.TrimSpace(cfg.Server.Addr),
		Token:        strings.TrimSpace(cfg.Server.Token),
		AgentPath:    strings.TrimSpace(cfg.Agent.Path),
		ReadTimeout:  rt,
		WriteTimeout: wt,
		IdleTimeout:  it,
	}, nil
}

func mapHandlerConfig(cfg *config.Config) server.HandlerConfig {
	return server.HandlerConfig{
		AgentName: strings.TrimSpace(cfg.Agent.Name),
		AgentPath: strings.TrimSpace(cfg.Agent.Path),
		PublicURL: strings.TrimSpace(cfg.Agent.PublicURL),
	}
}

func mapSchedulerConfig(cfg *config.Config) remind.Config {
	return remind.Config{
		Enabled:       cfg.SchedulerEnabled(),
		Sweep:         strings.TrimSpace(cfg.Scheduler.Sweep),
		Timezone:      strings.TrimSpace(cfg.Agent.Timezone),
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
	}
}

func mapDeliveryConfig(cfg *config.Config) (delivery.Config, error) {
	timeout, err := config.ParseDurationOrDefault("delivery.timeout", cfg.Delivery.Timeout, 10*time.Second)
	if err != nil {
		return delivery.Config{}, err
	}
	return delivery.Config{
		Timeout:    timeout,
		RatePerSec: cfg.Delivery.RatePerSec,
	}, nil
}

func mapHistoryConfig(cfg *config.Config) (history.Config, error) {
	if cfg.History == nil {
		return history.Config{}, nil
	}
	h := cfg.History
	busy, err := config.ParseDurationOrDefault("history.busy_timeout", h.BusyTimeout, 1*time.Second)
	if err != nil {
		return history.Config{}, err
	}
	return history.Config{
		Driver:      strings.TrimSpace(h.Driver),
		Path:        strings.TrimSpace(h.Path),
		Keep:        h.Keep,
		BusyTimeout: busy,
	}, nil
}

// validateConfig is the transactional reload gate: a config that fails here
// is rejected without touching the running services.
func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Scheduler.MaxConcurrent < 0 {
		return fmt.Errorf("scheduler.max_concurrent must be >= 0")
	}
	if sweep := strings.TrimSpace(cfg.Scheduler.Sweep); sweep != "" {
		if _, err := remind.ParseSweep(sweep); err != nil {
			return fmt.Errorf("scheduler.sweep: %w", err)
		}
	}
	if tz := strings.TrimSpace(cfg.Agent.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("agent.timezone: invalid %q: %w", tz, err)
		}
	}
	if cfg.Delivery.RatePerSec < 0 {
		return fmt.Errorf("delivery.rate_per_sec must be >= 0")
	}
	if _, err := mapServerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDeliveryConfig(cfg); err != nil {
		return err
	}
	if cfg.History != nil {
		if cfg.History.Keep < 0 {
			return fmt.Errorf("history.keep must be >= 0")
		}
		if _, err := mapHistoryConfig(cfg); err != nil {
			return err
		}
	}
	return nil
}
