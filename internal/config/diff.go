package config

import (
	"sort"
	"strings"

	logx "ronbot/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets (tokens) are never included; only
// whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 20)

	// Server. Token values are compared (a rotation must reach Apply) but
	// never logged.
	if strings.TrimSpace(oldCfg.Server.Addr) != strings.TrimSpace(newCfg.Server.Addr) ||
		strings.TrimSpace(oldCfg.Server.Token) != strings.TrimSpace(newCfg.Server.Token) ||
		strings.TrimSpace(oldCfg.Server.ReadTimeout) != strings.TrimSpace(newCfg.Server.ReadTimeout) ||
		strings.TrimSpace(oldCfg.Server.WriteTimeout) != strings.TrimSpace(newCfg.Server.WriteTimeout) ||
		strings.TrimSpace(oldCfg.Server.IdleTimeout) != strings.TrimSpace(newCfg.Server.IdleTimeout) {
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.String("server.addr", strings.TrimSpace(newCfg.Server.Addr)),
			logx.Bool("server.token_set", strings.TrimSpace(newCfg.Server.Token) != ""),
		)
	}

	// Agent
	if strings.TrimSpace(oldCfg.Agent.Name) != strings.TrimSpace(newCfg.Agent.Name) ||
		strings.TrimSpace(oldCfg.Agent.Path) != strings.TrimSpace(newCfg.Agent.Path) ||
		strings.TrimSpace(oldCfg.Agent.PublicURL) != strings.TrimSpace(newCfg.Agent.PublicURL) ||
		strings.TrimSpace(oldCfg.Agent.Timezone) != strings.TrimSpace(newCfg.Agent.Timezone) {
		changed = append(changed, "agent")
		attrs = append(attrs,
			logx.String("agent.name", strings.TrimSpace(newCfg.Agent.Name)),
			logx.String("agent.path", strings.TrimSpace(newCfg.Agent.Path)),
			logx.String("agent.timezone", strings.TrimSpace(newCfg.Agent.Timezone)),
		)
	}

	// Logging (never log the alert bot token)
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) ||
		oldCfg.Logging.Telegram.Enabled != newCfg.Logging.Telegram.Enabled ||
		strings.TrimSpace(oldCfg.Logging.Telegram.Token) != strings.TrimSpace(newCfg.Logging.Telegram.Token) ||
		oldCfg.Logging.Telegram.ChatID != newCfg.Logging.Telegram.ChatID ||
		oldCfg.Logging.Telegram.MinLevel != newCfg.Logging.Telegram.MinLevel ||
		oldCfg.Logging.Telegram.RatePerSec != newCfg.Logging.Telegram.RatePerSec {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	// Scheduler
	oldEnabled := oldCfg.SchedulerEnabled()
	newEnabled := newCfg.SchedulerEnabled()
	if oldEnabled != newEnabled ||
		strings.TrimSpace(oldCfg.Scheduler.Sweep) != strings.TrimSpace(newCfg.Scheduler.Sweep) ||
		oldCfg.Scheduler.MaxConcurrent != newCfg.Scheduler.MaxConcurrent {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newEnabled),
			logx.String("scheduler.sweep", strings.TrimSpace(newCfg.Scheduler.Sweep)),
			logx.Int("scheduler.max_concurrent", newCfg.Scheduler.MaxConcurrent),
		)
	}

	// Delivery
	if strings.TrimSpace(oldCfg.Delivery.Timeout) != strings.TrimSpace(newCfg.Delivery.Timeout) ||
		oldCfg.Delivery.RatePerSec != newCfg.Delivery.RatePerSec {
		changed = append(changed, "delivery")
		attrs = append(attrs,
			logx.String("delivery.timeout", strings.TrimSpace(newCfg.Delivery.Timeout)),
			logx.Int("delivery.rate_per_sec", newCfg.Delivery.RatePerSec),
		)
	}

	// History. Nil means disabled. Paths are compared but only whether one
	// is set gets logged.
	var oDriver, nDriver, oBusy, nBusy, oPath, nPath string
	var oKeep, nKeep int
	if oldCfg.History != nil {
		oDriver = strings.TrimSpace(oldCfg.History.Driver)
		oBusy = strings.TrimSpace(oldCfg.History.BusyTimeout)
		oPath = strings.TrimSpace(oldCfg.History.Path)
		oKeep = oldCfg.History.Keep
	}
	if newCfg.History != nil {
		nDriver = strings.TrimSpace(newCfg.History.Driver)
		nBusy = strings.TrimSpace(newCfg.History.BusyTimeout)
		nPath = strings.TrimSpace(newCfg.History.Path)
		nKeep = newCfg.History.Keep
	}
	if oDriver != nDriver || oBusy != nBusy || oPath != nPath || oKeep != nKeep {
		changed = append(changed, "history")
		attrs = append(attrs,
			logx.String("history.driver", nDriver),
			logx.Bool("history.path_set", nPath != ""),
			logx.String("history.busy_timeout", nBusy),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
