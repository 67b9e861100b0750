package delivery

import (
	"fmt"
	"strconv"
)

// ErrorKind classifies why a push failed. Failures are terminal either
// way (no retry); the kind only feeds logs and history.
type ErrorKind string

const (
	// KindConnection covers DNS, dial, TLS and transport-level failures.
	KindConnection ErrorKind = "connection"
	// KindTimeout means the push exceeded the delivery timeout.
	KindTimeout ErrorKind = "timeout"
	// KindStatus means the callback answered with a non-2xx status.
	KindStatus ErrorKind = "status"
)

// Error is a failed push. Host is the callback host only; full callback
// URLs can carry credentials and stay out of errors and logs.
type Error struct {
	Kind   ErrorKind
	Host   string
	Status int    // set for KindStatus
	Body   string // truncated response body for KindStatus
	Err    error  // underlying cause for connection/timeout
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		msg := "push to " + e.Host + " rejected with status " + strconv.Itoa(e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	case KindTimeout:
		return fmt.Sprintf("push to %s timed out: %v", e.Host, e.Err)
	default:
		return fmt.Sprintf("push to %s failed: %v", e.Host, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }
