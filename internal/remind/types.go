package remind

import "time"

// Status is transient delivery state, used for logging and history only.
// A reminder leaves the store the moment a sweep claims it; status never
// drives a retry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Reminder is the unit of scheduled work.
//
// ContextID and CallbackURL are stored verbatim from the inbound request and
// never mutated. DueAt is a UTC instant.
type Reminder struct {
	ID        string    `json:"id"`
	ContextID string    `json:"context_id"`
	Message   string    `json:"message"`
	DueAt     time.Time `json:"due_at"`

	CallbackURL string `json:"callback_url"`
	// CallbackToken, when present, is echoed as bearer auth on the push.
	CallbackToken string `json:"callback_token,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ReminderEvent is the bus payload for reminder.* events.
type ReminderEvent struct {
	ID        string        `json:"id"`
	ContextID string        `json:"context_id"`
	DueAt     time.Time     `json:"due_at"`
	At        time.Time     `json:"at"`
	Latency   time.Duration `json:"latency,omitempty"` // At - DueAt for outcomes
	Error     string        `json:"error,omitempty"`
}

// Event types published on the bus.
const (
	EventCreated   = "reminder.created"
	EventDelivered = "reminder.delivered"
	EventFailed    = "reminder.failed"
)
