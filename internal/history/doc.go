// Package history provides an optional persistence layer for delivery
// outcomes.
//
// Pending reminders themselves are never persisted; only the result of
// each delivery attempt is recorded, for /status and postmortems.
package history
