package history

import (
	"context"
	"time"

	"ronbot/internal/eventbus"
	"ronbot/internal/remind"
	logx "ronbot/pkg/logx"
)

// appendTimeout bounds one history write so a stuck disk never backs up
// into the event loop.
const appendTimeout = 2 * time.Second

// Recorder turns reminder outcome events into history entries. It is the
// only writer; delivery code never touches the store directly.
type Recorder struct {
	store Store
	bus   *eventbus.Bus
	log   logx.Logger
}

func NewRecorder(store Store, bus *eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, bus: bus, log: log}
}

// Run consumes outcome events until ctx is canceled. It returns nil when
// history is disabled so a supervisor treats it as a clean exit.
func (r *Recorder) Run(ctx context.Context) error {
	if r.store == nil || r.bus == nil {
		return nil
	}

	ch, unsub := r.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			r.record(ev)
		}
	}
}

func (r *Recorder) record(ev eventbus.Event) {
	var outcome string
	switch ev.Type {
	case remind.EventDelivered:
		outcome = OutcomeDelivered
	case remind.EventFailed:
		outcome = OutcomeFailed
	default:
		return
	}

	re, ok := ev.Data.(remind.ReminderEvent)
	if !ok {
		r.log.Debug("outcome event with unexpected payload", logx.String("type", ev.Type))
		return
	}

	e := Entry{
		At:         re.At,
		ReminderID: re.ID,
		ContextID:  re.ContextID,
		DueAt:      re.DueAt,
		Outcome:    outcome,
		LatencyMS:  re.Latency.Milliseconds(),
		Error:      re.Error,
	}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := r.store.Append(ctx, e); err != nil {
		r.log.Warn("history append failed", logx.String("reminder_id", e.ReminderID), logx.Err(err))
	}
}
