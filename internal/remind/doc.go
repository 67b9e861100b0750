// Package remind implements the reminder pipeline: parsing /remindme
// commands, holding pending reminders in memory, and sweeping due ones
// out to a delivery sender.
//
// # Command grammar
//
// A reminder request is a /remindme command with a quoted task followed by
// a single time clause:
//
//   - Relative: /remindme "Task" in 10 minutes (units: seconds, minutes,
//     hours, singular or plural).
//   - Absolute: /remindme "Task" at 16:30 (24-hour clock; a time already
//     past today rolls to tomorrow).
//
// The relative form is tried first. Anything that does not match either
// form yields a *ParseError whose Reason is suitable for sending back to
// the requester verbatim.
//
// # Store semantics
//
// Store keeps pending reminders keyed by id behind a single mutex. The only
// read path the sweep uses, DueSnapshot, removes everything due inside the
// same critical section that reads it, so two concurrent sweeps can never
// claim the same reminder. Combined with a sender that never retries, this
// gives at-most-once delivery.
//
// # Sweeping
//
// Service runs a cron-driven sweep (default "@every 1m"). Each sweep claims
// the due batch and dispatches deliveries with bounded concurrency; the
// outcome of every dispatch is published on the event bus as
// EventDelivered or EventFailed.
package remind
