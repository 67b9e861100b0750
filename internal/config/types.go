package config

type Config struct {
	Server  ServerConfig  `json:"server"`
	Agent   AgentConfig   `json:"agent"`
	Logging LoggingConfig `json:"logging"`

	// Scheduler controls the periodic due-reminder sweep.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Delivery controls the outbound push client.
	Delivery DeliveryConfig `json:"delivery"`

	// History controls the optional delivery-outcome log.
	// If omitted, nothing is recorded.
	History *HistoryConfig `json:"history,omitempty"`
}

// ServerConfig controls the inbound HTTP listener.
//
// Security note:
//   - Token, when set, guards /status (bearer header or ?token= query).
//   - The agent endpoint, /health and the agent card stay open; peers
//     must be able to reach them without operator credentials.
type ServerConfig struct {
	Addr  string `json:"addr,omitempty"`  // default: ":8000"
	Token string `json:"token,omitempty"` // optional bearer token (do not log)

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// AgentConfig names the agent and anchors absolute times.
type AgentConfig struct {
	Name string `json:"name,omitempty"` // default: "Ron the Reminder"
	Path string `json:"path,omitempty"` // default: "/a2a/ron"

	// PublicURL is the externally reachable endpoint advertised in the
	// agent card. Empty means derive it from the request host.
	PublicURL string `json:"public_url,omitempty"`

	// Timezone is an IANA name (e.g. "Europe/Berlin") used to interpret
	// "at HH:MM" requests. Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`
}

// SchedulerConfig controls the sweep loop.
//
// Enabled is a pointer so an omitted field defaults to true; an agent that
// never sweeps accepts reminders it will never deliver.
type SchedulerConfig struct {
	Enabled *bool `json:"enabled,omitempty"`

	// Sweep is either a cron spec ("*/1 * * * *", "@every 1m") or a plain
	// Go duration ("60s"). Default: "@every 1m".
	Sweep string `json:"sweep,omitempty"`

	// MaxConcurrent bounds parallel deliveries within one sweep. Default: 8.
	MaxConcurrent int `json:"max_concurrent,omitempty"`
}

// DeliveryConfig controls the outbound push client.
type DeliveryConfig struct {
	// Timeout is a Go duration string bounding one push attempt. Default: "10s".
	Timeout string `json:"timeout,omitempty"`

	// RatePerSec paces outbound pushes across a sweep. 0 disables pacing.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram routes warn+ lines to an operator chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"` // bot token (do not log)
	ChatID     int64  `json:"chat_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// HistoryConfig controls the delivery-outcome log.
//
// Example:
//
//	"history": { "driver": "file", "path": "./ron_history" }
type HistoryConfig struct {
	Driver string `json:"driver"` // "none", "file" or "sqlite"
	Path   string `json:"path"`

	// Keep bounds how many records Recent() returns. Default: 500.
	Keep int `json:"keep,omitempty"`

	// BusyTimeout is a Go duration string (sqlite).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerEnabled resolves the omitted-means-true default.
func (c *Config) SchedulerEnabled() bool {
	if c == nil || c.Scheduler.Enabled == nil {
		return true
	}
	return *c.Scheduler.Enabled
}
