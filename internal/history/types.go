package history

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("history disabled")

// Config configures delivery history.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", history is disabled. Keep bounds how many
// entries are retained; older ones are pruned.
type Config struct {
	Driver      string
	Path        string
	Keep        int
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Outcome values for an Entry.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)

// Entry records one delivery attempt outcome.
// Keep it compact and schema-stable.
type Entry struct {
	At         time.Time `json:"at"`
	ReminderID string    `json:"reminder_id"`
	ContextID  string    `json:"context_id"`
	DueAt      time.Time `json:"due_at"`
	Outcome    string    `json:"outcome"`
	LatencyMS  int64     `json:"latency_ms"`
	Error      string    `json:"error,omitempty"`
}
